package stats

import (
	"sort"
	"time"
)

// LatencySummary aggregates the round-trip times observed during the probe
// phase of a run.
type LatencySummary struct {
	Count int           `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// SummarizeLatency computes the summary over the raw round-trip times.
// The input slice is sorted in place. Returns nil for an empty input.
func SummarizeLatency(rtts []time.Duration) *LatencySummary {
	n := len(rtts)
	if n == 0 {
		return nil
	}
	sum := int64(0)
	for _, d := range rtts {
		sum += d.Nanoseconds()
	}
	sort.SliceStable(rtts, func(i, j int) bool { return rtts[i] < rtts[j] })
	return &LatencySummary{
		Count: n,
		Avg:   time.Duration(sum / int64(n)),
		Min:   rtts[0],
		Max:   rtts[n-1],
		P50:   percentile(rtts, 50),
		P90:   percentile(rtts, 90),
		P95:   percentile(rtts, 95),
		P99:   percentile(rtts, 99),
	}
}

// percentile picks by the nearest-rank method over a sorted slice.
func percentile(sorted []time.Duration, p int) time.Duration {
	n := len(sorted)
	idx := (n*p + 99) / 100 // ceil(n*p/100)
	if idx < 1 {
		idx = 1
	}
	if idx > n {
		idx = n
	}
	return sorted[idx-1]
}
