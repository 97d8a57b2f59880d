package metrics

import (
	"sync"
	"time"

	"github.com/jackzampolin/bibfix/internal/bibtex"
)

// DefaultHistory is the number of recent runs a Recorder keeps.
const DefaultHistory = 1000

// Recorder keeps fix-run metrics in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.RWMutex
	history int
	recent  []Metric
	totals  Summary
}

// NewRecorder creates a recorder that keeps the last history runs for
// latency statistics. Totals cover every run ever recorded.
func NewRecorder(history int) *Recorder {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Recorder{history: history}
}

// RecordOpts provides context for a metric recording.
type RecordOpts struct {
	Source   string
	Bytes    int
	Encoding string
	Duration time.Duration
}

// Record stores a single metric.
func (r *Recorder) Record(m Metric) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.totals.add(m)
	r.recent = append(r.recent, m)
	if len(r.recent) > r.history {
		r.recent = r.recent[len(r.recent)-r.history:]
	}
}

// RecordFix records a successful fix run.
func (r *Recorder) RecordFix(opts RecordOpts, result *bibtex.Result) {
	if result == nil {
		return
	}
	r.Record(Metric{
		RunID:     result.RunID,
		Source:    opts.Source,
		Total:     result.Total,
		Corrected: result.Corrected,
		Dropped:   result.Dropped,
		Degraded:  result.Degraded,
		Bytes:     opts.Bytes,
		Encoding:  opts.Encoding,
		Duration:  opts.Duration,
		Success:   true,
	})
}

// RecordError records a run that failed before a document was produced.
func (r *Recorder) RecordError(opts RecordOpts, errorType string) {
	r.Record(Metric{
		Source:    opts.Source,
		Bytes:     opts.Bytes,
		Encoding:  opts.Encoding,
		Duration:  opts.Duration,
		Success:   false,
		ErrorType: errorType,
	})
}

// Recent returns a copy of the retained runs, oldest first.
func (r *Recorder) Recent() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metric, len(r.recent))
	copy(out, r.recent)
	return out
}
