package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/agendopro/webhook/internal/api/response"
	"github.com/agendopro/webhook/internal/api/validation"
	"github.com/agendopro/webhook/internal/models"
)

// WebhookLogsService defines the interface for browsing webhook audit rows.
type WebhookLogsService interface {
	ListWebhookLogs(ctx context.Context, filters *models.ListWebhookLogsFilters) (*models.ListWebhookLogsResponse, error)
}

// WebhookLogsHandler serves the webhook audit log admin API.
type WebhookLogsHandler struct {
	service WebhookLogsService
}

// NewWebhookLogsHandler creates a new webhook logs handler.
func NewWebhookLogsHandler(service WebhookLogsService) *WebhookLogsHandler {
	return &WebhookLogsHandler{service: service}
}

// List handles GET /v1/webhook-logs.
func (h *WebhookLogsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListWebhookLogsFilters{}

	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	if filters.Since != nil && filters.Until != nil && !filters.Until.After(*filters.Since) {
		response.RespondBadRequest(w, "until must be after since")

		return
	}

	result, err := h.service.ListWebhookLogs(r.Context(), filters)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list webhook logs", "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
