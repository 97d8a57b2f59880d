package metrics

import "time"

// Sources a fix run can come from.
const (
	SourceUpload = "upload"
	SourceAPI    = "api"
	SourceCLI    = "cli"
)

// Metric records a single fix run.
type Metric struct {
	RunID  string `json:"run_id,omitempty"`
	Source string `json:"source"`

	// Document counters
	Total     int  `json:"total"`
	Corrected int  `json:"corrected"`
	Dropped   int  `json:"dropped"`
	Degraded  bool `json:"degraded"`

	// Input
	Bytes    int    `json:"bytes"`
	Encoding string `json:"encoding,omitempty"`

	// Timing
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`

	// Outcome
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`
}
