package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/agendopro/webhook/internal/api/response"
	"github.com/agendopro/webhook/internal/api/validation"
	"github.com/agendopro/webhook/internal/connector/agendopro"
)

const invalidPayloadMessage = "Invalid payload structure"

// EventProcessor applies one decoded inbound event.
type EventProcessor interface {
	Process(ctx context.Context, env *agendopro.Envelope, raw []byte) error
}

// WebhookHandler is the inbound AgendoPro webhook endpoint.
type WebhookHandler struct {
	processor EventProcessor
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(processor EventProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// WebhookSuccess is the 200 response body.
type WebhookSuccess struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Handle serves /webhooks/agendopro for every method.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)

		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		response.RespondWebhookError(w, http.StatusMethodNotAllowed, "Method not allowed", "")

		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondWebhookError(w, http.StatusRequestEntityTooLarge, "Payload too large", "")

			return
		}

		slog.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		response.RespondWebhookError(w, http.StatusBadRequest, invalidPayloadMessage, "")

		return
	}

	var env agendopro.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		slog.WarnContext(r.Context(), "webhook body is not a valid envelope", "error", err)
		response.RespondWebhookError(w, http.StatusBadRequest, invalidPayloadMessage, "")

		return
	}

	if err := validation.ValidateStruct(&env); err != nil {
		slog.WarnContext(r.Context(), "webhook envelope failed validation", "error", err)
		response.RespondWebhookError(w, http.StatusBadRequest, invalidPayloadMessage, "")

		return
	}

	if err := h.processor.Process(r.Context(), &env, body); err != nil {
		response.RespondWebhookError(w, http.StatusInternalServerError, "Internal server error", err.Error())

		return
	}

	response.RespondJSON(w, http.StatusOK, WebhookSuccess{
		Success: true,
		Message: fmt.Sprintf("Event %s processed successfully", env.Event),
	})
}
