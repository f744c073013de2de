package service

import (
	"context"

	"github.com/agendopro/webhook/internal/models"
)

const defaultWebhookLogsLimit = 100

// WebhookLogsRepository defines the read side of the audit log.
type WebhookLogsRepository interface {
	List(ctx context.Context, filters *models.ListWebhookLogsFilters) ([]models.WebhookLog, error)
	Count(ctx context.Context, filters *models.ListWebhookLogsFilters) (int64, error)
}

// WebhookLogsService handles business logic for browsing webhook audit rows.
type WebhookLogsService struct {
	repo WebhookLogsRepository
}

// NewWebhookLogsService creates a new webhook logs service.
func NewWebhookLogsService(repo WebhookLogsRepository) *WebhookLogsService {
	return &WebhookLogsService{repo: repo}
}

// ListWebhookLogs returns one page of audit rows and the total matching the filters.
func (s *WebhookLogsService) ListWebhookLogs(
	ctx context.Context, filters *models.ListWebhookLogsFilters,
) (*models.ListWebhookLogsResponse, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultWebhookLogsLimit
	}

	logs, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &models.ListWebhookLogsResponse{
		Data:   logs,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}
