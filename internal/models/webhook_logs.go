package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookLog is one append-only audit row for a structurally valid inbound event.
type WebhookLog struct {
	ID          uuid.UUID       `json:"id"`
	Provider    string          `json:"provider"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// CreateWebhookLogRequest is the input for appending an audit row.
type CreateWebhookLogRequest struct {
	Provider    string
	EventType   string
	Payload     json.RawMessage
	ProcessedAt time.Time
}

// ListWebhookLogsFilters represents query filters for GET /v1/webhook-logs.
type ListWebhookLogsFilters struct {
	Provider  *string    `form:"provider" validate:"omitempty,max=64,no_null_bytes"`
	EventType *string    `form:"event_type" validate:"omitempty,max=128,no_null_bytes"`
	Since     *time.Time `form:"since"`
	Until     *time.Time `form:"until"`
	Limit     int        `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset    int        `form:"offset" validate:"omitempty,min=0"`
}

// ListWebhookLogsResponse represents the response for listing audit rows.
type ListWebhookLogsResponse struct {
	Data   []WebhookLog `json:"data"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}
