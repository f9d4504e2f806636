package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-crm/internal/jobs"
)

// SendDocumentEmail queues a document email. It satisfies the document
// publisher's mailer port.
func (c *Client) SendDocumentEmail(ctx context.Context, to, subject, body string) error {
	payload := SendEmailPayload{ID: c.newID(), To: to, Subject: subject, Body: body}
	info, err := c.EnqueueSendEmail(ctx, payload)
	if err != nil {
		return fmt.Errorf("enqueue email %s: %w", payload.ID, err)
	}
	c.logger.Info("email queued", slog.String("email_id", payload.ID), slog.String("task_id", info.ID),
		slog.String("subject", subject))
	return nil
}

// EmailJob handles TaskTypeSendEmail. SMTP delivery is outside this
// service, so the job logs the message it would hand to the relay.
type EmailJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewEmailJob wires the email handler.
func NewEmailJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *EmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailJob{Logger: logger, Metrics: metrics}
}

// Handle processes one email task.
func (j *EmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskTypeSendEmail)
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode email payload: %v: %w", err, asynq.SkipRetry))
	}
	if strings.TrimSpace(payload.To) == "" {
		return tracker.End(fmt.Errorf("email %s has no recipient: %w", payload.ID, asynq.SkipRetry))
	}
	j.Logger.InfoContext(ctx, "email delivered",
		slog.String("email_id", payload.ID),
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject),
		slog.Int("body_bytes", len(payload.Body)))
	j.Metrics.AddItems(TaskTypeSendEmail, 1)
	return tracker.End(nil)
}
