package stats

import "time"

// DefaultSampleInterval is the coarseness of sample recording. One sample
// per interval bounds memory for long runs regardless of chunk rate.
const DefaultSampleInterval = 100 * time.Millisecond

// Sample is a single observation within a run: how far into the run it was
// taken and the cumulative payload bytes moved by then.
type Sample struct {
	Offset time.Duration `json:"offset"`
	Bytes  uint64        `json:"bytes"`
}

// SampleFunc observes samples as they are recorded. Implementations must not
// block; the transfer loop calls it inline.
type SampleFunc func(Sample)

// Recorder appends samples at a coarse interval during a transfer loop. It
// is not safe for concurrent use; each run owns exactly one recorder.
type Recorder struct {
	clock    Clock
	interval time.Duration
	start    time.Time
	last     time.Duration
	samples  []Sample
	observe  SampleFunc
}

// NewRecorder returns a recorder using the given clock. An interval of zero
// selects DefaultSampleInterval. observe may be nil.
func NewRecorder(clock Clock, interval time.Duration, observe SampleFunc) *Recorder {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Recorder{clock: clock, interval: interval, observe: observe}
}

// Start marks the beginning of the run. Must be called before Record.
func (r *Recorder) Start(t0 time.Time) {
	r.start = t0
	r.last = -r.interval
}

// Record notes the cumulative byte count. A sample is appended only when at
// least one interval has passed since the previous sample.
func (r *Recorder) Record(cumBytes uint64) {
	off := r.clock.Since(r.start)
	if off-r.last < r.interval {
		return
	}
	r.append(Sample{Offset: off, Bytes: cumBytes})
}

// Finish appends the terminal sample unconditionally so the sequence always
// ends at the final byte count.
func (r *Recorder) Finish(cumBytes uint64) {
	r.append(Sample{Offset: r.clock.Since(r.start), Bytes: cumBytes})
}

func (r *Recorder) append(s Sample) {
	r.last = s.Offset
	r.samples = append(r.samples, s)
	if r.observe != nil {
		r.observe(s)
	}
}

// Samples returns the recorded sequence. The slice is read-only once the
// run has ended.
func (r *Recorder) Samples() []Sample { return r.samples }
