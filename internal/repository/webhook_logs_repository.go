package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendopro/webhook/internal/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// WebhookLogsRepository handles the append-only webhook_logs table.
type WebhookLogsRepository struct {
	db *pgxpool.Pool
}

// NewWebhookLogsRepository creates a new webhook logs repository.
func NewWebhookLogsRepository(db *pgxpool.Pool) *WebhookLogsRepository {
	return &WebhookLogsRepository{db: db}
}

// Append inserts one audit row.
func (r *WebhookLogsRepository) Append(ctx context.Context, req *models.CreateWebhookLogRequest) error {
	query := `
		INSERT INTO webhook_logs (provider, event_type, payload, processed_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.Exec(ctx, query, req.Provider, req.EventType, []byte(req.Payload), req.ProcessedAt); err != nil {
		return fmt.Errorf("failed to append webhook log: %w", err)
	}

	return nil
}

func applyWebhookLogFilters(b sq.SelectBuilder, filters *models.ListWebhookLogsFilters) sq.SelectBuilder {
	if filters.Provider != nil {
		b = b.Where(sq.Eq{"provider": *filters.Provider})
	}

	if filters.EventType != nil {
		b = b.Where(sq.Eq{"event_type": *filters.EventType})
	}

	if filters.Since != nil {
		b = b.Where(sq.GtOrEq{"processed_at": *filters.Since})
	}

	if filters.Until != nil {
		b = b.Where(sq.Lt{"processed_at": *filters.Until})
	}

	return b
}

// List retrieves audit rows, newest first.
func (r *WebhookLogsRepository) List(ctx context.Context, filters *models.ListWebhookLogsFilters) ([]models.WebhookLog, error) {
	b := applyWebhookLogFilters(
		psql.Select("id", "provider", "event_type", "payload", "processed_at").From("webhook_logs"),
		filters,
	).OrderBy("processed_at DESC", "id DESC")

	if filters.Limit > 0 {
		b = b.Limit(uint64(filters.Limit))
	}

	if filters.Offset > 0 {
		b = b.Offset(uint64(filters.Offset))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook logs query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}
	defer rows.Close()

	logs := []models.WebhookLog{}

	for rows.Next() {
		var (
			log     models.WebhookLog
			payload []byte
		)

		if err := rows.Scan(&log.ID, &log.Provider, &log.EventType, &payload, &log.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook log: %w", err)
		}

		log.Payload = payload
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook logs: %w", err)
	}

	return logs, nil
}

// Count returns the number of audit rows matching the filters (limit and offset ignored).
func (r *WebhookLogsRepository) Count(ctx context.Context, filters *models.ListWebhookLogsFilters) (int64, error) {
	query, args, err := applyWebhookLogFilters(psql.Select("COUNT(*)").From("webhook_logs"), filters).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build webhook logs count: %w", err)
	}

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count webhook logs: %w", err)
	}

	return count, nil
}

// DeleteOlderThan removes audit rows processed before cutoff and returns how many were removed.
func (r *WebhookLogsRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql.Delete("webhook_logs").Where(sq.Lt{"processed_at": cutoff}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build webhook logs purge: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge webhook logs: %w", err)
	}

	return tag.RowsAffected(), nil
}
