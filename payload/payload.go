// Package payload generates the traffic for a run: fixed-size pseudo-random
// chunks served from a single reusable buffer.
package payload

import (
	"math/rand"
	"time"
)

// Unbounded configures a generator with no byte budget; the caller bounds
// the transfer externally (by duration or cancellation).
const Unbounded = -1

// Generator produces payload chunks up to a configured byte budget. The
// same backing buffer is returned on every call so the transfer loop never
// allocates per chunk. Not safe for concurrent use; each run owns one.
type Generator struct {
	buf       []byte
	budget    int64
	remaining int64
}

// NewGenerator returns a generator of chunkSize-byte chunks. totalBytes is
// the byte budget; Unbounded disables it. The buffer content is filled once
// from a cheap randomness source; payload compressibility does not matter
// for raw throughput.
func NewGenerator(chunkSize int, totalBytes int64) *Generator {
	buf := make([]byte, chunkSize)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	rnd.Read(buf)
	return &Generator{buf: buf, budget: totalBytes, remaining: totalBytes}
}

// Next returns the next chunk to send, trimmed to the remaining budget, or
// nil when the budget is exhausted. The returned slice aliases the
// generator's buffer and is only valid until the next call.
func (g *Generator) Next() []byte {
	if g.budget == Unbounded {
		return g.buf
	}
	if g.remaining <= 0 {
		return nil
	}
	n := int64(len(g.buf))
	if n > g.remaining {
		n = g.remaining
	}
	g.remaining -= n
	return g.buf[:n]
}

// Remaining reports the unsent budget, or Unbounded.
func (g *Generator) Remaining() int64 { return g.remaining }

// Reset restarts the generator with a fresh budget, reusing the buffer.
func (g *Generator) Reset(totalBytes int64) {
	g.budget = totalBytes
	g.remaining = totalBytes
}
