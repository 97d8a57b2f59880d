package metrics

import (
	"sort"
	"time"
)

// Summary aggregates fix runs.
type Summary struct {
	Runs          int `json:"runs"`
	SuccessCount  int `json:"success_count"`
	ErrorCount    int `json:"error_count"`
	DegradedCount int `json:"degraded_count"`

	Entries   int `json:"entries"`
	Corrected int `json:"corrected"`
	Dropped   int `json:"dropped"`
	Bytes     int `json:"bytes"`

	TotalTime time.Duration `json:"total_time"`
}

func (s *Summary) add(m Metric) {
	s.Runs++
	if m.Success {
		s.SuccessCount++
	} else {
		s.ErrorCount++
	}
	if m.Degraded {
		s.DegradedCount++
	}
	s.Entries += m.Total
	s.Corrected += m.Corrected
	s.Dropped += m.Dropped
	s.Bytes += m.Bytes
	s.TotalTime += m.Duration
}

// Totals returns counters over every recorded run.
func (r *Recorder) Totals() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totals
}

// BySource groups the retained runs by source.
func (r *Recorder) BySource() map[string]*Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Summary)
	for _, m := range r.recent {
		s, ok := out[m.Source]
		if !ok {
			s = &Summary{}
			out[m.Source] = s
		}
		s.add(m)
	}
	return out
}

// LatencyStats holds latency percentiles over the retained runs, in seconds.
type LatencyStats struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Latency computes latency statistics over the retained runs.
func (r *Recorder) Latency() LatencyStats {
	r.mu.RLock()
	latencies := make([]float64, 0, len(r.recent))
	for _, m := range r.recent {
		if m.Duration > 0 {
			latencies = append(latencies, m.Duration.Seconds())
		}
	}
	r.mu.RUnlock()

	stats := LatencyStats{Count: len(latencies)}
	if len(latencies) == 0 {
		return stats
	}

	sort.Float64s(latencies)
	stats.Min = latencies[0]
	stats.Max = latencies[len(latencies)-1]

	var sum float64
	for _, l := range latencies {
		sum += l
	}
	stats.Avg = sum / float64(len(latencies))

	stats.P50 = percentile(latencies, 50)
	stats.P95 = percentile(latencies, 95)
	stats.P99 = percentile(latencies, 99)

	return stats
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	// Interpolate between floor and ceil indices
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
