// Package workers provides River job workers.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/agendopro/webhook/internal/observability"
)

// WebhookLogRetentionArgs are the arguments of the periodic webhook log purge.
type WebhookLogRetentionArgs struct {
	RetentionDays int `json:"retention_days"`
}

// Kind returns the River job kind.
func (WebhookLogRetentionArgs) Kind() string { return "webhook_log_retention" }

// InsertOpts keeps at most one pending purge per period.
func (WebhookLogRetentionArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 3,
		UniqueOpts:  river.UniqueOpts{ByPeriod: time.Hour},
	}
}

// webhookLogPurger is the minimal repo interface needed by the worker.
type webhookLogPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJobTimeout bounds one purge run.
const RetentionJobTimeout = 5 * time.Minute

// WebhookLogRetentionWorker deletes webhook_logs rows older than the configured window.
type WebhookLogRetentionWorker struct {
	river.WorkerDefaults[WebhookLogRetentionArgs]

	repo    webhookLogPurger
	metrics observability.JobMetrics
	now     func() time.Time
}

// NewWebhookLogRetentionWorker creates the worker. metrics may be nil when metrics are disabled.
func NewWebhookLogRetentionWorker(repo webhookLogPurger, metrics observability.JobMetrics) *WebhookLogRetentionWorker {
	return &WebhookLogRetentionWorker{
		repo:    repo,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Timeout limits how long a single purge can run.
func (w *WebhookLogRetentionWorker) Timeout(*river.Job[WebhookLogRetentionArgs]) time.Duration {
	return RetentionJobTimeout
}

// Work deletes rows processed before now minus RetentionDays. A non-positive window is a no-op.
func (w *WebhookLogRetentionWorker) Work(ctx context.Context, job *river.Job[WebhookLogRetentionArgs]) error {
	days := job.Args.RetentionDays
	if days <= 0 {
		slog.WarnContext(ctx, "webhook log retention: non-positive window, skipping", "retention_days", days)

		return nil
	}

	cutoff := w.now().AddDate(0, 0, -days)

	deleted, err := w.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge webhook logs: %w", err)
	}

	if w.metrics != nil {
		w.metrics.RecordWebhookLogsPurged(ctx, deleted)
	}

	slog.InfoContext(ctx, "webhook log retention: purged",
		"deleted", deleted,
		"cutoff", cutoff,
		"attempt", job.Attempt,
	)

	return nil
}

// NewWebhookLogRetentionPeriodicJob schedules the purge every interval, starting at boot.
func NewWebhookLogRetentionPeriodicJob(interval time.Duration, retentionDays int) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return WebhookLogRetentionArgs{RetentionDays: retentionDays}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
