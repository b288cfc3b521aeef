package jobs

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/model"
)

// Enqueuer is the task queue surface the submitter needs. Satisfied by
// *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Submitter creates jobs and hands them to the task queue.
type Submitter struct {
	store *Store
	queue Enqueuer
	newID func() string
}

// NewSubmitter builds a submitter over the job store and task queue.
func NewSubmitter(store *Store, queue Enqueuer) *Submitter {
	return &Submitter{store: store, queue: queue, newID: uuid.NewString}
}

// Submit persists a Queued job for the batch and enqueues its execution,
// returning the job id immediately.
func (s *Submitter) Submit(ctx context.Context, batchID, webhookURL string) (string, error) {
	if batchID == "" {
		return "", model.NewValidationError("batch id is required")
	}

	jobID := s.newID()
	s.store.Create(ctx, jobID, batchID, webhookURL)

	task, err := NewProcessTask(jobID)
	if err != nil {
		return "", err
	}
	if _, err := s.queue.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return "", eris.Wrap(err, "jobs: enqueue task")
	}

	zap.L().Info("job submitted",
		zap.String("job_id", jobID),
		zap.String("batch_id", batchID),
		zap.Bool("webhook", webhookURL != ""),
	)
	return jobID, nil
}
