// Package monitoring keeps lightweight process-local counters served by
// the stats endpoint.
package monitoring

import (
	"sync/atomic"
	"time"
)

// Collector accumulates counters across the HTTP layer, the batch
// orchestrator, and the job runner. All methods are safe for concurrent
// use.
type Collector struct {
	startedAt time.Time

	requests       atomic.Int64
	requestErrors  atomic.Int64
	documents      atomic.Int64
	documentErrors atomic.Int64
	batches        atomic.Int64
	jobsSubmitted  atomic.Int64
	jobsCompleted  atomic.Int64
	jobsFailed     atomic.Int64
}

// NewCollector starts a collector with the uptime clock at zero.
func NewCollector() *Collector {
	return &Collector{startedAt: time.Now()}
}

func (c *Collector) IncRequest()      { c.requests.Add(1) }
func (c *Collector) IncRequestError() { c.requestErrors.Add(1) }
func (c *Collector) IncJobSubmitted() { c.jobsSubmitted.Add(1) }
func (c *Collector) IncJobCompleted() { c.jobsCompleted.Add(1) }
func (c *Collector) IncJobFailed()    { c.jobsFailed.Add(1) }

// RecordBatch folds one batch outcome into the counters.
func (c *Collector) RecordBatch(succeeded, failed int) {
	c.batches.Add(1)
	c.documents.Add(int64(succeeded))
	c.documentErrors.Add(int64(failed))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	UptimeSeconds  int64 `json:"uptime_seconds"`
	Requests       int64 `json:"requests_total"`
	RequestErrors  int64 `json:"request_errors"`
	Batches        int64 `json:"batches_processed"`
	Documents      int64 `json:"documents_processed"`
	DocumentErrors int64 `json:"document_errors"`
	JobsSubmitted  int64 `json:"jobs_submitted"`
	JobsCompleted  int64 `json:"jobs_completed"`
	JobsFailed     int64 `json:"jobs_failed"`
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:  int64(time.Since(c.startedAt).Seconds()),
		Requests:       c.requests.Load(),
		RequestErrors:  c.requestErrors.Load(),
		Batches:        c.batches.Load(),
		Documents:      c.documents.Load(),
		DocumentErrors: c.documentErrors.Load(),
		JobsSubmitted:  c.jobsSubmitted.Load(),
		JobsCompleted:  c.jobsCompleted.Load(),
		JobsFailed:     c.jobsFailed.Load(),
	}
}
