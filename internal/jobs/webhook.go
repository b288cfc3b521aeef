package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/model"
)

// Notifier delivers a terminal-state notification for a job. Delivery is
// at-most-once: failures are logged, never retried, and never affect the
// job's state.
type Notifier interface {
	Notify(ctx context.Context, job *model.Job)
}

type webhookNotifier struct {
	http *http.Client
}

// NewWebhookNotifier builds the default HTTP POST notifier.
func NewWebhookNotifier() Notifier {
	return &webhookNotifier{
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

func (n *webhookNotifier) Notify(ctx context.Context, job *model.Job) {
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("webhook_url", job.WebhookURL))

	payload := webhookPayload{
		JobID:     job.ID,
		Status:    string(job.Status),
		Timestamp: time.Now().UTC(),
	}
	switch job.Status {
	case model.JobCompleted:
		payload.Payload = job.Result
	case model.JobFailed:
		payload.Payload = map[string]string{"error": job.Error}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Warn("webhook payload marshal failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.WebhookURL, bytes.NewReader(body))
	if err != nil {
		log.Warn("webhook request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		log.Warn("webhook delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn("webhook rejected", zap.Int("status", resp.StatusCode))
		return
	}
	log.Info("webhook delivered", zap.Int("status", resp.StatusCode))
}
