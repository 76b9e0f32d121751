package model

import "time"

// Item is one product availability update.
type Item struct {
	Code      string `json:"jan" validate:"required,jan"`
	Available bool   `json:"available"`
	Price     int64  `json:"price" validate:"gt=0"`
	URL       string `json:"url" validate:"required,http_url"`
	Title     string `json:"title,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
}

// Outcome statuses. SUCCESS and FAILED come from the vendor, the others are
// assigned locally before or instead of a vendor answer.
const (
	StatusSuccess      = "SUCCESS"
	StatusFailed       = "FAILED"
	StatusInvalid      = "INVALID"
	StatusHTTPError    = "HTTP_ERROR"
	StatusTimeout      = "TIMEOUT"
	StatusNetworkError = "NETWORK_ERROR"
)

// Outcome is the result of one item's submission attempt.
type Outcome struct {
	Index      int    `json:"index"`
	Code       string `json:"jan"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

// Succeeded reports whether the vendor accepted the update.
func (o Outcome) Succeeded() bool { return o.Status == StatusSuccess }

// Progress is emitted before each item goes out.
type Progress struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Code  string `json:"jan"`
}

// BatchResult collects the outcomes of one batch in input order. Items left
// unprocessed because the batch was cancelled are listed in Skipped.
type BatchResult struct {
	Outcomes  []Outcome `json:"outcomes"`
	Skipped   []string  `json:"skipped,omitempty"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
}

// Add appends an outcome and updates the counters.
func (r *BatchResult) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Succeeded() {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// Batch states.
const (
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchCancelled = "cancelled"
	BatchFailed    = "failed"
)

// BatchProgress is the pollable snapshot of a background batch.
type BatchProgress struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Total       int        `json:"total"`
	Current     int        `json:"current"`
	CurrentCode string     `json:"current_jan,omitempty"`
	RowsSkipped int        `json:"rows_skipped"`
	Outcomes    []Outcome  `json:"outcomes"`
	Skipped     []string   `json:"skipped,omitempty"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Done reports whether the batch has stopped running.
func (p *BatchProgress) Done() bool { return p.State != BatchRunning }
