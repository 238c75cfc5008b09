package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mida-project/mission-cli/internal/config"
	"github.com/mida-project/mission-cli/internal/model"
)

// Event is one job lifecycle notification.
type Event struct {
	Job       string         `json:"job"`
	Status    string         `json:"status"` // "succeeded" or "failed"
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier delivers job outcome events to a webhook. With no webhook URL
// configured every send is a no-op, so callers never need to guard.
type Notifier struct {
	cfg    config.NotifyConfig
	client *http.Client
}

// New creates a Notifier.
func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// JobSucceeded reports a completed job run.
func (n *Notifier) JobSucceeded(ctx context.Context, job string, report *model.ChangeReport) {
	ev := Event{
		Job:       job,
		Status:    "succeeded",
		Message:   fmt.Sprintf("job %s completed", job),
		Timestamp: time.Now().UTC(),
	}
	if report != nil {
		ev.Message = fmt.Sprintf(
			"job %s completed: %d created, %d updated, %d quarantined (batch of %d)",
			job, report.Created, report.Updated, report.Quarantined, report.BatchSize,
		)
		ev.Details = map[string]any{
			"run_id":      report.RunID,
			"created":     report.Created,
			"updated":     report.Updated,
			"noops":       report.NoOps,
			"quarantined": report.Quarantined,
			"skipped":     report.Skipped,
		}
	}
	n.send(ctx, ev)
}

// JobFailed reports a failed job run with the error summary.
func (n *Notifier) JobFailed(ctx context.Context, job string, jobErr error) {
	n.send(ctx, Event{
		Job:       job,
		Status:    "failed",
		Message:   fmt.Sprintf("job %s failed: %v", job, jobErr),
		Timestamp: time.Now().UTC(),
	})
}

func (n *Notifier) send(ctx context.Context, ev Event) {
	if n.cfg.WebhookURL == "" {
		return
	}
	if err := n.sendWebhook(ctx, ev); err != nil {
		zap.L().Error("notify: failed to send event",
			zap.String("job", ev.Job),
			zap.String("status", ev.Status),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("notify: event sent",
		zap.String("job", ev.Job),
		zap.String("status", ev.Status),
	)
}

func (n *Notifier) sendWebhook(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
