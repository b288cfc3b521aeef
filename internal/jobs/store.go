// Package jobs implements the asynchronous batch job runner: a persisted
// queued -> processing -> {completed, failed} state machine with progress
// reporting and a best-effort terminal webhook notification.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/tramitex/docflow/internal/cache"
	"github.com/tramitex/docflow/internal/model"
)

// Store persists job state through the cache layer. Read-modify-write
// cycles are serialized in-process; the backing store is last-writer-wins,
// which is safe because each job is only ever driven by one runner.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
	now   func() time.Time
}

// NewStore builds a job store over the cache layer.
func NewStore(c *cache.Cache) *Store {
	return &Store{cache: c, now: time.Now}
}

// Create persists a new job in the Queued state.
func (s *Store) Create(ctx context.Context, id, batchID, webhookURL string) *model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	job := &model.Job{
		ID:         id,
		BatchID:    batchID,
		Status:     model.JobQueued,
		WebhookURL: webhookURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.cache.SetJob(ctx, job)
	return job
}

// Get returns the current job state.
func (s *Store) Get(ctx context.Context, id string) (*model.Job, bool) {
	return s.cache.GetJob(ctx, id)
}

// MarkProcessing moves a job into the Processing state with progress 0.
// A job already in a terminal state is left untouched.
func (s *Store) MarkProcessing(ctx context.Context, id string) (*model.Job, error) {
	return s.update(ctx, id, func(job *model.Job) {
		job.Status = model.JobProcessing
		job.Progress = 0
	})
}

// UpdateProgress raises the job's progress percentage. Progress never
// decreases and terminal jobs are never modified.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress float64) (*model.Job, error) {
	return s.update(ctx, id, func(job *model.Job) {
		if progress > job.Progress {
			job.Progress = progress
		}
	})
}

// Complete moves a job to the Completed terminal state carrying its
// result, with progress pinned to 100.
func (s *Store) Complete(ctx context.Context, id string, result *model.BatchResult) (*model.Job, error) {
	return s.update(ctx, id, func(job *model.Job) {
		job.Status = model.JobCompleted
		job.Progress = 100
		job.Result = result
		job.Error = ""
	})
}

// Fail moves a job to the Failed terminal state carrying the error.
func (s *Store) Fail(ctx context.Context, id string, cause string) (*model.Job, error) {
	return s.update(ctx, id, func(job *model.Job) {
		job.Status = model.JobFailed
		job.Error = cause
	})
}

func (s *Store) update(ctx context.Context, id string, mutate func(*model.Job)) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.cache.GetJob(ctx, id)
	if !ok {
		return nil, &model.NotFoundError{Resource: "job " + id}
	}
	if job.Status.Terminal() {
		// Terminal states absorb; redelivered or late updates are no-ops.
		return job, nil
	}
	mutate(job)
	job.UpdatedAt = s.now().UTC()
	s.cache.SetJob(ctx, job)
	return job, nil
}
