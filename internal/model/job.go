package model

import "time"

// JobStatus is the async job state machine:
// queued -> processing -> {completed, failed}. Terminal states absorb.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is the persisted state of one asynchronous batch run. Progress is a
// percentage in [0,100], monotonically non-decreasing until a terminal
// state is reached and frozen afterwards.
type Job struct {
	ID         string       `json:"job_id"`
	BatchID    string       `json:"batch_id"`
	Status     JobStatus    `json:"status"`
	Progress   float64      `json:"progress"`
	WebhookURL string       `json:"webhook_url,omitempty"`
	Result     *BatchResult `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
