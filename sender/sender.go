// Package sender implements the sending side of a measurement run:
// connect, handshake, optional latency probes, the transfer loop, the
// completion marker and the wait for the receiver's acknowledgment.
package sender

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/caleb-hansolo/lanbench/bench"
	"github.com/caleb-hansolo/lanbench/payload"
	"github.com/caleb-hansolo/lanbench/session"
	"github.com/caleb-hansolo/lanbench/stats"
	"github.com/caleb-hansolo/lanbench/transport"
)

// ackTimeout bounds the wait for the receiver's acknowledgment after the
// transfer completes.
const ackTimeout = 30 * time.Second

// Sender drives one run. A Sender is single-use: construct, Run, discard.
type Sender struct {
	cfg      bench.RunConfig
	clock    stats.Clock
	onSample stats.SampleFunc

	state bench.State
}

// Option configures a Sender.
type Option func(*Sender)

// WithClock substitutes the time source, for tests.
func WithClock(c stats.Clock) Option {
	return func(s *Sender) { s.clock = c }
}

// WithSampleFunc registers a non-blocking observer for transfer samples.
func WithSampleFunc(fn stats.SampleFunc) Option {
	return func(s *Sender) { s.onSample = fn }
}

// New returns a Sender for one run of cfg.
func New(cfg bench.RunConfig, opts ...Option) *Sender {
	s := &Sender{cfg: cfg, clock: stats.SystemClock{}, state: bench.StateIdle}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State reports the engine's current state.
func (s *Sender) State() bench.State { return s.state }

// Run executes the full state machine and returns the computed result. On
// any fatal error the connection is closed, no result is produced and the
// partial samples are discarded.
func (s *Sender) Run(ctx context.Context) (*stats.RunResult, error) {
	res, err := s.run(ctx)
	if err != nil {
		s.state = bench.StateFailed
		return nil, err
	}
	s.state = bench.StateDone
	return res, nil
}

func (s *Sender) run(ctx context.Context) (*stats.RunResult, error) {
	s.state = bench.StateConnecting
	log.Debug("state change", "state", s.state)

	ep, err := transport.Connect(ctx, s.cfg.DialAddr(), s.cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	defer ep.Close()

	// Cancellation closes the endpoint, which unblocks any pending read or
	// write below. The goroutine never touches the data path.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			ep.Close()
		case <-watchDone:
		}
	}()

	declared := s.cfg.Bytes
	if s.cfg.Duration > 0 {
		declared = 0
	}
	hello := session.Hello{
		Probes:     uint32(s.cfg.Probes),
		TotalBytes: declared,
		ChunkSize:  uint32(s.cfg.ChunkSize),
	}
	if err := session.WriteHello(ep, hello); err != nil {
		return nil, err
	}
	if err := session.ReadHelloReply(ep); err != nil {
		return nil, err
	}

	latency, err := s.probe(ep)
	if err != nil {
		return nil, err
	}

	s.state = bench.StateTransferring
	log.Debug("state change", "state", s.state)

	budget := int64(payload.Unbounded)
	if s.cfg.Duration == 0 {
		budget = int64(s.cfg.Bytes)
	}
	gen := payload.NewGenerator(s.cfg.ChunkSize, budget)
	rec := stats.NewRecorder(s.clock, stats.DefaultSampleInterval, s.onSample)

	t0 := s.clock.Now()
	rec.Start(t0)

	var sent uint64
	for {
		if s.cfg.Duration > 0 && s.clock.Since(t0) >= s.cfg.Duration {
			break
		}
		chunk := gen.Next()
		if chunk == nil {
			break
		}
		if err := ep.Send(chunk); err != nil {
			return nil, err
		}
		sent += uint64(len(chunk))
		rec.Record(sent)
	}
	rec.Finish(sent)

	if err := session.WriteMarker(ep, sent); err != nil {
		return nil, err
	}
	if err := ep.CloseWrite(); err != nil {
		return nil, err
	}

	s.state = bench.StateAwaitingAck
	log.Debug("state change", "state", s.state, "sent", sent)

	ep.SetReadDeadline(time.Now().Add(ackTimeout))
	ack, err := session.ReadAck(ep)
	if err != nil {
		return nil, err
	}
	t1 := s.clock.Now()

	kernelRTT, rttErr := ep.KernelRTT()
	if rttErr != nil {
		log.Debug("kernel rtt unavailable", "err", rttErr)
	}

	// The reported byte count is the receiver-confirmed one; the local
	// counter only feeds the consistency check.
	elapsed := t1.Sub(t0)
	res := &stats.RunResult{
		ID:          uuid.NewString(),
		Role:        s.cfg.Role.String(),
		Elapsed:     elapsed,
		TotalBytes:  ack.ReceivedBytes,
		Throughput:  stats.ComputeThroughput(ack.ReceivedBytes, elapsed),
		PeerBytes:   ack.ReceivedBytes,
		PeerElapsed: ack.Elapsed,
		Latency:     latency,
		KernelRTT:   kernelRTT,
		Samples:     rec.Samples(),
	}
	if stats.Diverged(sent, ack.ReceivedBytes) {
		res.Warning = fmt.Sprintf(
			"byte counts diverged: sent %d, receiver acknowledged %d",
			sent, ack.ReceivedBytes)
		log.Warn("consistency warning", "sent", sent, "acked", ack.ReceivedBytes)
	}
	return res, nil
}

// probe runs the latency sub-phase: cfg.Probes sequential round trips of a
// fixed record the receiver echoes back.
func (s *Sender) probe(ep *transport.Endpoint) (*stats.LatencySummary, error) {
	if s.cfg.Probes <= 0 {
		return nil, nil
	}
	rtts := make([]time.Duration, 0, s.cfg.Probes)
	nonce := rand.Uint64()
	for i := 0; i < s.cfg.Probes; i++ {
		p := session.Probe{Seq: uint64(i), Nonce: nonce}
		begin := s.clock.Now()
		if err := session.WriteProbe(ep, p); err != nil {
			return nil, err
		}
		echo, err := session.ReadProbe(ep)
		if err != nil {
			return nil, err
		}
		rtt := s.clock.Since(begin)
		if echo != p {
			return nil, bench.WrapError(bench.KindRead, "sender.probe",
				fmt.Errorf("probe %d echoed with wrong content", i))
		}
		rtts = append(rtts, rtt)
	}
	return stats.SummarizeLatency(rtts), nil
}
