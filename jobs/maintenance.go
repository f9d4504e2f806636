package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-crm/internal/jobs"
)

const defaultRetentionDays = 30

// KeyPurger deletes idempotency keys older than a cutoff.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob keeps the idempotency key table small.
type IdempotencyCleanupJob struct {
	Store   KeyPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func NewIdempotencyCleanupJob(store KeyPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle purges keys past the payload retention, 30 days by default.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	payload := IdempotencyCleanupPayload{RetentionDays: defaultRetentionDays}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(fmt.Errorf("decode cleanup payload: %v: %w", err, asynq.SkipRetry))
		}
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = defaultRetentionDays
	}
	removed, err := j.Store.Cleanup(ctx, time.Duration(payload.RetentionDays)*24*time.Hour)
	if err != nil {
		return tracker.End(fmt.Errorf("idempotency cleanup: %w", err))
	}
	j.Metrics.AddItems(TaskIdempotencyCleanup, removed)
	j.Logger.InfoContext(ctx, "idempotency keys purged", slog.Int64("removed", removed), slog.Int("retention_days", payload.RetentionDays))
	return tracker.End(nil)
}

// QuotationExpirer moves overdue quotations to Expired.
type QuotationExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// QuotationExpiryJob runs the expiry sweep on a schedule, so quotations
// nobody lists still expire.
type QuotationExpiryJob struct {
	Quotations QuotationExpirer
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

func NewQuotationExpiryJob(quotations QuotationExpirer, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuotationExpiryJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotationExpiryJob{Quotations: quotations, Logger: logger, Metrics: metrics}
}

func (j *QuotationExpiryJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Quotations == nil {
		return errors.New("quotation expiry: handler not configured")
	}
	tracker := j.Metrics.Track(TaskQuotationExpiry)
	expired, err := j.Quotations.ExpireOverdue(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("quotation expiry: %w", err))
	}
	j.Metrics.AddItems(TaskQuotationExpiry, int64(expired))
	return tracker.End(nil)
}
