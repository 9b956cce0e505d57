package stats

import "time"

// ConsistencyTolerance is the byte-count divergence between the two sides
// that is attributed to framing overhead. Anything beyond it raises the
// consistency warning on the sender's result.
const ConsistencyTolerance = 1024

// RunResult is the immutable summary of one completed run. It is computed
// once, after the transfer loop terminates, and handed to the reporter.
type RunResult struct {
	ID   string `json:"id"`
	Role string `json:"role"`

	Elapsed    time.Duration `json:"elapsed"`
	TotalBytes uint64        `json:"total_bytes"`
	// Throughput is in bytes per second. Zero-byte runs have throughput 0.
	Throughput float64 `json:"throughput_bps"`

	// PeerBytes/PeerElapsed are the counterpart's reported values. On the
	// sender they come from the acknowledgment; on the receiver from the
	// completion marker.
	PeerBytes   uint64        `json:"peer_bytes"`
	PeerElapsed time.Duration `json:"peer_elapsed,omitempty"`

	// Warning is the non-fatal consistency note, empty when both sides
	// agree within tolerance.
	Warning string `json:"warning,omitempty"`

	// Latency summarizes the probe phase, nil when the phase was disabled.
	Latency *LatencySummary `json:"latency,omitempty"`

	// KernelRTT is the kernel's smoothed RTT estimate at run end, zero when
	// unavailable on the platform.
	KernelRTT time.Duration `json:"kernel_rtt,omitempty"`

	Samples []Sample `json:"samples,omitempty"`
}

// ComputeThroughput guards the division: a run with no bytes, or a degenerate
// elapsed time, has throughput 0 rather than NaN/Inf.
func ComputeThroughput(totalBytes uint64, elapsed time.Duration) float64 {
	if totalBytes == 0 || elapsed <= 0 {
		return 0
	}
	return float64(totalBytes) / elapsed.Seconds()
}

// Diverged reports whether two byte counts differ by more than the framing
// tolerance.
func Diverged(a, b uint64) bool {
	if a >= b {
		return a-b > ConsistencyTolerance
	}
	return b-a > ConsistencyTolerance
}
