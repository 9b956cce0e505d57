// Package report renders a completed RunResult for the user. Reporters are
// pure consumers: they never re-measure, retry, or mutate the result.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/caleb-hansolo/lanbench/stats"
)

// Reporter writes one RunResult to its output sink.
type Reporter interface {
	Report(r *stats.RunResult) error
}

// Human writes a plain-text summary.
type Human struct {
	W io.Writer
}

func (h Human) Report(r *stats.RunResult) error {
	w := h.W
	fmt.Fprintf(w, "--- %s results (run %s) ---\n", r.Role, r.ID)
	fmt.Fprintf(w, "elapsed:     %s\n", stats.DurationToString(r.Elapsed))
	fmt.Fprintf(w, "total bytes: %s (%d)\n", stats.NumberToUnit(r.TotalBytes), r.TotalBytes)
	fmt.Fprintf(w, "throughput:  %sbps (%.0f bytes/sec)\n",
		stats.BytesToRate(r.Throughput), r.Throughput)
	if r.Latency != nil {
		l := r.Latency
		fmt.Fprintf(w, "latency:     avg %s min %s max %s (%d probes)\n",
			stats.DurationToString(l.Avg), stats.DurationToString(l.Min),
			stats.DurationToString(l.Max), l.Count)
		fmt.Fprintf(w, "             p50 %s p90 %s p95 %s p99 %s\n",
			stats.DurationToString(l.P50), stats.DurationToString(l.P90),
			stats.DurationToString(l.P95), stats.DurationToString(l.P99))
	}
	if r.KernelRTT > 0 {
		fmt.Fprintf(w, "kernel rtt:  %s\n", stats.DurationToString(r.KernelRTT))
	}
	if r.Warning != "" {
		fmt.Fprintf(w, "warning:     %s\n", r.Warning)
	}
	_, err := fmt.Fprintln(w)
	return err
}

// JSON writes the result as a single JSON document.
type JSON struct {
	W io.Writer
}

func (j JSON) Report(r *stats.RunResult) error {
	enc := json.NewEncoder(j.W)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
