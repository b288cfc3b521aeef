package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"
)

// TaskTypeProcessBatch is the task queue type name for batch jobs.
const TaskTypeProcessBatch = "batch:process"

type taskPayload struct {
	JobID string `json:"job_id"`
}

// NewProcessTask builds the queue task carrying a job id.
func NewProcessTask(jobID string) (*asynq.Task, error) {
	payload, err := json.Marshal(taskPayload{JobID: jobID})
	if err != nil {
		return nil, eris.Wrap(err, "jobs: marshal task payload")
	}
	return asynq.NewTask(TaskTypeProcessBatch, payload), nil
}

// HandleProcessTask is the queue-facing wrapper over Runner.Execute.
func (r *Runner) HandleProcessTask(ctx context.Context, t *asynq.Task) error {
	var p taskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return eris.Wrap(err, "jobs: unmarshal task payload")
	}
	return r.Execute(ctx, p.JobID)
}

// RegisterHandlers wires the runner's task handlers onto a serve mux.
func RegisterHandlers(mux *asynq.ServeMux, r *Runner) {
	mux.HandleFunc(TaskTypeProcessBatch, r.HandleProcessTask)
}
