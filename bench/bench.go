// Package bench holds the core types shared by the sender and receiver
// engines: roles, run states, the per-run configuration and the error
// taxonomy.
package bench

import (
	"net"
	"strconv"
	"time"
)

// Role selects which side of a run this process drives. It is fixed for the
// lifetime of the process.
type Role uint32

const (
	RoleSender Role = iota
	RoleReceiver
)

func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleReceiver:
		return "receiver"
	}
	return "unknown"
}

// State is the engine's position in its run state machine. Both roles share
// the same state space; a few states are only reachable by one role.
type State uint32

const (
	StateIdle State = iota
	StateConnecting
	StateListening
	StateTransferring
	StateReceiving
	StateAwaitingAck
	StateAcking
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateTransferring:
		return "transferring"
	case StateReceiving:
		return "receiving"
	case StateAwaitingAck:
		return "awaiting-ack"
	case StateAcking:
		return "acking"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// RunConfig is the immutable configuration for a single run. It is owned by
// the engine that receives it and is never shared across runs.
type RunConfig struct {
	Role Role

	// Host is the remote address to connect to (sender) or the local
	// address to bind (receiver, may be empty for all interfaces).
	Host string
	Port uint16

	// Bytes is the transfer volume for a byte-bound run. Zero is a valid
	// volume (an empty run). It is ignored when Duration is non-zero.
	Bytes uint64
	// Duration selects a time-bound run when non-zero. Exactly one stop
	// condition is in effect; config validation enforces the exclusivity.
	Duration time.Duration

	// ChunkSize is the payload written per transport call.
	ChunkSize int

	// Probes is the number of round trips in the latency probe phase that
	// precedes the transfer. Zero disables the phase.
	Probes int

	ConnectTimeout time.Duration
	// AcceptTimeout bounds the receiver's wait for an inbound connection.
	// Zero waits forever.
	AcceptTimeout time.Duration
}

// ListenAddr is the receiver's bind address.
func (c RunConfig) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// DialAddr is the sender's remote address.
func (c RunConfig) DialAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}
