// Package stats provides the timing and statistics layer of a run: the
// monotonic clock, the sample recorder, latency summaries and the final
// RunResult computation.
package stats

import "time"

// Clock is the time source for all interval measurements. Implementations
// must be monotonic; wall-clock adjustments must not affect measured
// intervals. time.Time readings taken from the system clock carry a
// monotonic component, which Since and Sub use.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// SystemClock reads the operating system's monotonic clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time                  { return time.Now() }
func (SystemClock) Since(t time.Time) time.Duration { return time.Since(t) }
