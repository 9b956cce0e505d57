// Package session defines the wire records exchanged during a run. All
// records are fixed-width, network byte order, and read with exact-size
// reads; the bulk payload between them is unframed.
//
// Record sequence on the wire:
//
//	sender → receiver: hello
//	receiver → sender: hello reply
//	both directions:   probe echo, repeated hello.Probes times
//	sender → receiver: raw payload chunks, then the completion marker,
//	                   then write half-close
//	receiver → sender: acknowledgment
package session

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/caleb-hansolo/lanbench/bench"
	"github.com/caleb-hansolo/lanbench/transport"
)

const (
	// helloMagic identifies a lanbench sender. There is exactly one
	// protocol; a mismatch is a broken or foreign peer, not a version to
	// negotiate with.
	helloMagic uint32 = 0x4c424e31 // "LBN1"

	// markerMagic is the constant sentinel in the completion marker. The
	// marker is recognized by position (the final record before EOF); the
	// magic is a sanity check, not a framing mechanism.
	markerMagic uint64 = 0x4c414e424d41524b // "LANBMARK"

	HelloSize      = 24
	HelloReplySize = 8
	ProbeSize      = 16
	MarkerSize     = 16
	AckSize        = 16
)

// Hello announces the run parameters to the receiver.
type Hello struct {
	// Probes is the number of echo round trips before the transfer.
	Probes uint32
	// TotalBytes is the declared transfer volume, zero for a
	// duration-bound run. Informational; the receiver always drains to
	// EOF.
	TotalBytes uint64
	// ChunkSize is the sender's chunk size, informational.
	ChunkSize uint32
}

// WriteHello sends the hello record.
func WriteHello(ep *transport.Endpoint, h Hello) error {
	var b [HelloSize]byte
	binary.BigEndian.PutUint32(b[0:4], helloMagic)
	binary.BigEndian.PutUint32(b[4:8], h.Probes)
	binary.BigEndian.PutUint64(b[8:16], h.TotalBytes)
	binary.BigEndian.PutUint32(b[16:20], h.ChunkSize)
	// b[20:24] reserved, zero.
	return ep.Send(b[:])
}

// ReadHello reads and validates the hello record.
func ReadHello(ep *transport.Endpoint) (Hello, error) {
	var b [HelloSize]byte
	if err := ep.ReceiveFull(b[:]); err != nil {
		return Hello{}, err
	}
	if m := binary.BigEndian.Uint32(b[0:4]); m != helloMagic {
		return Hello{}, bench.WrapError(bench.KindRead, "session.hello",
			fmt.Errorf("unexpected hello magic %#x", m))
	}
	return Hello{
		Probes:     binary.BigEndian.Uint32(b[4:8]),
		TotalBytes: binary.BigEndian.Uint64(b[8:16]),
		ChunkSize:  binary.BigEndian.Uint32(b[16:20]),
	}, nil
}

// WriteHelloReply completes the handshake from the receiver side.
func WriteHelloReply(ep *transport.Endpoint) error {
	var b [HelloReplySize]byte
	binary.BigEndian.PutUint32(b[0:4], helloMagic)
	binary.BigEndian.PutUint32(b[4:8], 1)
	return ep.Send(b[:])
}

// ReadHelloReply validates the receiver's handshake reply.
func ReadHelloReply(ep *transport.Endpoint) error {
	var b [HelloReplySize]byte
	if err := ep.ReceiveFull(b[:]); err != nil {
		return err
	}
	if m := binary.BigEndian.Uint32(b[0:4]); m != helloMagic {
		return bench.WrapError(bench.KindRead, "session.hello-reply",
			fmt.Errorf("unexpected hello reply magic %#x", m))
	}
	return nil
}

// Probe is one latency probe record, echoed verbatim by the receiver.
type Probe struct {
	Seq   uint64
	Nonce uint64
}

// WriteProbe sends a probe record.
func WriteProbe(ep *transport.Endpoint, p Probe) error {
	var b [ProbeSize]byte
	binary.BigEndian.PutUint64(b[0:8], p.Seq)
	binary.BigEndian.PutUint64(b[8:16], p.Nonce)
	return ep.Send(b[:])
}

// ReadProbe reads a probe record.
func ReadProbe(ep *transport.Endpoint) (Probe, error) {
	var b [ProbeSize]byte
	if err := ep.ReceiveFull(b[:]); err != nil {
		return Probe{}, err
	}
	return Probe{
		Seq:   binary.BigEndian.Uint64(b[0:8]),
		Nonce: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// WriteMarker sends the completion marker carrying the sender's own payload
// byte count.
func WriteMarker(ep *transport.Endpoint, senderBytes uint64) error {
	var b [MarkerSize]byte
	binary.BigEndian.PutUint64(b[0:8], markerMagic)
	binary.BigEndian.PutUint64(b[8:16], senderBytes)
	return ep.Send(b[:])
}

// ParseMarker decodes the final MarkerSize bytes of the stream. ok is false
// when the bytes do not form a marker, meaning the stream was cut before
// the sender finished.
func ParseMarker(tail []byte) (senderBytes uint64, ok bool) {
	if len(tail) != MarkerSize {
		return 0, false
	}
	if binary.BigEndian.Uint64(tail[0:8]) != markerMagic {
		return 0, false
	}
	return binary.BigEndian.Uint64(tail[8:16]), true
}

// Ack is the receiver's single fixed-layout acknowledgment.
type Ack struct {
	ReceivedBytes uint64
	Elapsed       time.Duration
}

// WriteAck sends the acknowledgment.
func WriteAck(ep *transport.Endpoint, a Ack) error {
	var b [AckSize]byte
	binary.BigEndian.PutUint64(b[0:8], a.ReceivedBytes)
	binary.BigEndian.PutUint64(b[8:16], uint64(a.Elapsed.Nanoseconds()))
	return ep.Send(b[:])
}

// ReadAck reads the acknowledgment.
func ReadAck(ep *transport.Endpoint) (Ack, error) {
	var b [AckSize]byte
	if err := ep.ReceiveFull(b[:]); err != nil {
		return Ack{}, err
	}
	return Ack{
		ReceivedBytes: binary.BigEndian.Uint64(b[0:8]),
		Elapsed:       time.Duration(binary.BigEndian.Uint64(b[8:16])),
	}, nil
}
