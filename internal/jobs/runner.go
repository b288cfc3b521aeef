package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/batch"
	"github.com/tramitex/docflow/internal/model"
	"github.com/tramitex/docflow/internal/monitoring"
)

// BatchProcessor is the orchestrator surface the runner drives.
// Satisfied by *batch.Orchestrator.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batchID string, opts batch.Options) (*model.BatchResult, error)
}

// Runner executes one job at a time: it drives the state machine,
// publishes progress while the batch runs, and fires the terminal
// webhook notification.
type Runner struct {
	store    *Store
	orch     BatchProcessor
	notifier Notifier
	stats    *monitoring.Collector
}

// NewRunner builds a job runner. stats may be nil.
func NewRunner(store *Store, orch BatchProcessor, notifier Notifier, stats *monitoring.Collector) *Runner {
	return &Runner{store: store, orch: orch, notifier: notifier, stats: stats}
}

// Execute runs the job to a terminal state. Jobs already terminal are
// skipped, which makes redelivery from the task queue harmless. Execute
// itself only errors when the job record cannot be found; batch failures
// are captured in the job's Failed state instead.
func (r *Runner) Execute(ctx context.Context, jobID string) error {
	job, ok := r.store.Get(ctx, jobID)
	if !ok {
		return &model.NotFoundError{Resource: "job " + jobID}
	}
	if job.Status.Terminal() {
		zap.L().Info("job already terminal, skipping",
			zap.String("job_id", jobID), zap.String("status", string(job.Status)))
		return nil
	}

	log := zap.L().With(zap.String("job_id", jobID), zap.String("batch_id", job.BatchID))
	log.Info("job started")

	if _, err := r.store.MarkProcessing(ctx, jobID); err != nil {
		return err
	}

	result, err := r.orch.ProcessBatch(ctx, job.BatchID, batch.Options{
		UseCache: true,
		OnProgress: func(done, total int) {
			progress := float64(done) / float64(total) * 100
			if _, perr := r.store.UpdateProgress(ctx, jobID, progress); perr != nil {
				log.Warn("progress update failed", zap.Error(perr))
			}
		},
	})

	if err != nil {
		job, _ = r.store.Fail(ctx, jobID, err.Error())
		if r.stats != nil {
			r.stats.IncJobFailed()
		}
		log.Warn("job failed", zap.Error(err))
	} else {
		job, _ = r.store.Complete(ctx, jobID, result)
		if r.stats != nil {
			r.stats.IncJobCompleted()
		}
		log.Info("job completed", zap.String("batch_status", string(result.Status)))
	}

	if job != nil && job.WebhookURL != "" {
		r.notifier.Notify(ctx, job)
	}
	return nil
}
