// Package receiver implements the receiving side of a measurement run:
// bind, single accept, handshake, probe echoing, the absorption loop and
// the acknowledgment.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/caleb-hansolo/lanbench/bench"
	"github.com/caleb-hansolo/lanbench/session"
	"github.com/caleb-hansolo/lanbench/stats"
	"github.com/caleb-hansolo/lanbench/transport"
)

// receiveBufSize is the reusable absorption buffer. Larger than any sane
// chunk size so one read can drain a full chunk.
const receiveBufSize = 256 * 1024

// Receiver drives one run. A Receiver is single-use: construct, Listen,
// Run, discard.
type Receiver struct {
	cfg      bench.RunConfig
	clock    stats.Clock
	onSample stats.SampleFunc

	listener *transport.Listener
	state    bench.State
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithClock substitutes the time source, for tests.
func WithClock(c stats.Clock) Option {
	return func(r *Receiver) { r.clock = c }
}

// WithSampleFunc registers a non-blocking observer for absorption samples.
func WithSampleFunc(fn stats.SampleFunc) Option {
	return func(r *Receiver) { r.onSample = fn }
}

// New returns a Receiver for one run of cfg.
func New(cfg bench.RunConfig, opts ...Option) *Receiver {
	r := &Receiver{cfg: cfg, clock: stats.SystemClock{}, state: bench.StateIdle}
	for _, o := range opts {
		o(r)
	}
	return r
}

// State reports the engine's current state.
func (r *Receiver) State() bench.State { return r.state }

// Listen binds the configured address. After it returns, Addr reports the
// bound address and a sender may connect at any time.
func (r *Receiver) Listen() error {
	l, err := transport.NewListener(r.cfg.ListenAddr())
	if err != nil {
		r.state = bench.StateFailed
		return err
	}
	r.listener = l
	r.state = bench.StateListening
	log.Debug("state change", "state", r.state, "addr", l.Addr())
	return nil
}

// Addr is the bound listen address. Valid only after Listen.
func (r *Receiver) Addr() string {
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

// Run accepts one connection and executes the rest of the state machine.
// Listen must have been called first.
func (r *Receiver) Run(ctx context.Context) (*stats.RunResult, error) {
	if r.listener == nil {
		r.state = bench.StateFailed
		return nil, bench.WrapError(bench.KindBind, "receiver.run",
			errors.New("Run called before Listen"))
	}
	defer r.listener.Close()
	res, err := r.run(ctx)
	if err != nil {
		r.state = bench.StateFailed
		return nil, err
	}
	r.state = bench.StateDone
	return res, nil
}

func (r *Receiver) run(ctx context.Context) (*stats.RunResult, error) {
	ep, err := r.listener.Accept(ctx, r.cfg.AcceptTimeout)
	if err != nil {
		return nil, err
	}
	defer ep.Close()

	// Cancellation closes the endpoint to unblock pending reads; the
	// goroutine stays off the data path.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			ep.Close()
		case <-watchDone:
		}
	}()

	hello, err := session.ReadHello(ep)
	if err != nil {
		return nil, err
	}
	if err := session.WriteHelloReply(ep); err != nil {
		return nil, err
	}
	log.Debug("handshake complete",
		"probes", hello.Probes, "declared", hello.TotalBytes, "chunk", hello.ChunkSize)

	for i := uint32(0); i < hello.Probes; i++ {
		p, err := session.ReadProbe(ep)
		if err != nil {
			return nil, err
		}
		if err := session.WriteProbe(ep, p); err != nil {
			return nil, err
		}
	}

	r.state = bench.StateReceiving
	log.Debug("state change", "state", r.state)

	rec := stats.NewRecorder(r.clock, stats.DefaultSampleInterval, r.onSample)
	t0 := r.clock.Now()
	rec.Start(t0)

	// The payload is unframed, so the completion marker is recognized by
	// position: the final MarkerSize bytes read before EOF. A rolling tail
	// of the stream is kept for that purpose.
	buf := make([]byte, receiveBufSize)
	tail := make([]byte, 0, session.MarkerSize)
	var total uint64
	for {
		n, err := ep.Receive(buf)
		if n > 0 {
			total += uint64(n)
			tail = rollTail(tail, buf[:n])
			rec.Record(total)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	t1 := r.clock.Now()

	senderBytes, ok := session.ParseMarker(tail)
	if !ok || total < session.MarkerSize {
		return nil, bench.WrapError(bench.KindRead, "receiver.drain",
			errors.New("stream ended without a completion marker"))
	}
	payloadBytes := total - session.MarkerSize
	rec.Finish(payloadBytes)
	elapsed := t1.Sub(t0)

	r.state = bench.StateAcking
	log.Debug("state change", "state", r.state, "received", payloadBytes)

	ack := session.Ack{ReceivedBytes: payloadBytes, Elapsed: elapsed}
	if err := session.WriteAck(ep, ack); err != nil {
		// The local result still stands; the sender will surface a
		// consistency warning or a read failure on its side.
		log.Warn("failed to send acknowledgment", "err", err)
	}

	res := &stats.RunResult{
		ID:         uuid.NewString(),
		Role:       r.cfg.Role.String(),
		Elapsed:    elapsed,
		TotalBytes: payloadBytes,
		Throughput: stats.ComputeThroughput(payloadBytes, elapsed),
		PeerBytes:  senderBytes,
		Samples:    rec.Samples(),
	}
	if stats.Diverged(payloadBytes, senderBytes) {
		res.Warning = fmt.Sprintf(
			"byte counts diverged: received %d, sender reported %d",
			payloadBytes, senderBytes)
		log.Warn("consistency warning", "received", payloadBytes, "reported", senderBytes)
	}
	return res, nil
}

// rollTail keeps the last MarkerSize bytes of the stream in tail, reusing
// its backing array.
func rollTail(tail, chunk []byte) []byte {
	const keep = session.MarkerSize
	if len(chunk) >= keep {
		tail = tail[:keep]
		copy(tail, chunk[len(chunk)-keep:])
		return tail
	}
	if len(tail)+len(chunk) <= keep {
		return append(tail, chunk...)
	}
	drop := len(tail) + len(chunk) - keep
	n := copy(tail, tail[drop:])
	tail = tail[:n]
	return append(tail, chunk...)
}
