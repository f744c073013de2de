// Package agendopro turns inbound AgendoPro scheduling events into appointment
// mutations and audit rows.
package agendopro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agendopro/webhook/internal/apperrors"
	"github.com/agendopro/webhook/internal/datatypes"
	"github.com/agendopro/webhook/internal/models"
	"github.com/agendopro/webhook/internal/observability"
)

// Provider is the webhook_logs.provider tag for this integration.
const Provider = "agendopro"

// Outcome labels what Process did with one event.
type Outcome string

const (
	OutcomeCreated              Outcome = "created"
	OutcomeUpdated              Outcome = "updated"
	OutcomeStatusChanged        Outcome = "status_changed"
	OutcomeSkippedNoAccount     Outcome = "skipped_no_account"
	OutcomeSkippedNoAppointment Outcome = "skipped_no_appointment"
	OutcomeSkippedNoExternalID  Outcome = "skipped_no_external_id"
	OutcomeIgnored              Outcome = "ignored"
	OutcomeFailed               Outcome = "failed"
)

var tracer = otel.Tracer("github.com/agendopro/webhook/internal/connector/agendopro")

// Normalizer dispatches inbound events to the appointment store and records each one
// in the webhook log.
type Normalizer struct {
	accounts     AccountDirectory
	appointments AppointmentStore
	logs         WebhookLogStore
	metrics      observability.IngestMetrics
	now          func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithMetrics records per-event outcome metrics. nil disables recording.
func WithMetrics(m observability.IngestMetrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

// WithClock overrides the time source used for updated_at, created_at and processed_at.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// NewNormalizer creates a Normalizer over the given stores.
func NewNormalizer(accounts AccountDirectory, appointments AppointmentStore, logs WebhookLogStore, opts ...Option) *Normalizer {
	n := &Normalizer{
		accounts:     accounts,
		appointments: appointments,
		logs:         logs,
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Process handles one structurally valid envelope. raw is the request body as received;
// it is stored verbatim in the audit row. When raw is empty the envelope is re-encoded.
//
// The audit row is appended after dispatch whatever the dispatch outcome. A failed
// append is logged and never changes the returned error. Lookup misses are not errors.
func (n *Normalizer) Process(ctx context.Context, env *Envelope, raw []byte) error {
	if env == nil || env.Event == "" || env.Data == nil {
		return apperrors.NewValidationError("envelope", "event and data are required")
	}

	ctx, span := tracer.Start(ctx, "agendopro.webhook.process",
		trace.WithAttributes(
			attribute.String("agendopro.event_type", env.Event),
			attribute.String("agendopro.external_id", env.Data.ID.String()),
		),
	)
	defer span.End()

	start := time.Now()

	outcome, err := n.dispatch(ctx, env)
	if err != nil {
		outcome = OutcomeFailed

		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		slog.ErrorContext(ctx, "webhook event processing failed",
			"event_type", env.Event,
			"external_id", env.Data.ID.String(),
			"error", err,
		)
	}

	span.SetAttributes(attribute.String("agendopro.outcome", string(outcome)))

	if n.metrics != nil {
		n.metrics.RecordEvent(ctx, env.Event, string(outcome), time.Since(start))
	}

	// The audit row is written even if the caller has gone away.
	n.appendLog(context.WithoutCancel(ctx), env, raw)

	return err
}

func (n *Normalizer) dispatch(ctx context.Context, env *Envelope) (Outcome, error) {
	eventType, ok := datatypes.ParseEventType(env.Event)
	if !ok {
		slog.InfoContext(ctx, "ignoring unrecognized webhook event", "event_type", env.Event)

		return OutcomeIgnored, nil
	}

	if eventType.IsUpsert() {
		return n.upsert(ctx, env.Data)
	}

	switch eventType {
	case datatypes.AppointmentCancelled:
		return n.setStatus(ctx, env.Data, models.AppointmentStatusCancelled)
	case datatypes.AppointmentConfirmed:
		return n.setStatus(ctx, env.Data, models.AppointmentStatusConfirmed)
	}

	return OutcomeIgnored, nil
}

// upsert creates or replaces the appointment keyed by data.ID. A unique violation on
// insert means a concurrent delivery created the row first; the payload is then applied
// to that row as an update, once.
func (n *Normalizer) upsert(ctx context.Context, data *EventData) (Outcome, error) {
	externalID := data.ID.String()
	if externalID == "" {
		slog.WarnContext(ctx, "appointment event without external id, skipping",
			"professional_id", data.ProfessionalID.String())

		return OutcomeSkippedNoExternalID, nil
	}

	account, err := n.accounts.FindByProfessionalID(ctx, data.ProfessionalID.String())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			slog.InfoContext(ctx, "no account linked to professional, skipping",
				"professional_id", data.ProfessionalID.String(),
				"external_id", externalID,
			)

			return OutcomeSkippedNoAccount, nil
		}

		return OutcomeFailed, fmt.Errorf("resolve account: %w", err)
	}

	req := upsertRequest(data, account.ID, n.now())

	existing, err := n.appointments.GetByExternalID(ctx, externalID)

	switch {
	case err == nil:
		return n.update(ctx, existing.ID, req)
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		return OutcomeFailed, fmt.Errorf("look up appointment: %w", err)
	}

	created, err := n.appointments.Create(ctx, req)
	if err == nil {
		slog.InfoContext(ctx, "appointment created",
			"appointment_id", created.ID,
			"external_id", externalID,
			"status", req.Status,
		)

		return OutcomeCreated, nil
	}

	if !errors.Is(err, apperrors.ErrConflict) {
		return OutcomeFailed, fmt.Errorf("create appointment: %w", err)
	}

	slog.WarnContext(ctx, "appointment created concurrently, applying as update", "external_id", externalID)

	existing, err = n.appointments.GetByExternalID(ctx, externalID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("look up appointment after conflict: %w", err)
	}

	return n.update(ctx, existing.ID, req)
}

func (n *Normalizer) update(ctx context.Context, id uuid.UUID, req *models.UpsertAppointmentRequest) (Outcome, error) {
	if _, err := n.appointments.UpdateByID(ctx, id, req); err != nil {
		return OutcomeFailed, fmt.Errorf("update appointment: %w", err)
	}

	slog.InfoContext(ctx, "appointment updated",
		"appointment_id", id,
		"external_id", req.ExternalID,
		"status", req.Status,
	)

	return OutcomeUpdated, nil
}

// setStatus applies a status-only event. No transition graph is enforced: any status may
// follow any other.
func (n *Normalizer) setStatus(ctx context.Context, data *EventData, status models.AppointmentStatus) (Outcome, error) {
	externalID := data.ID.String()

	affected, err := n.appointments.SetStatusByExternalID(ctx, externalID, status, n.now())
	if err != nil {
		return OutcomeFailed, fmt.Errorf("set appointment status: %w", err)
	}

	if affected == 0 {
		slog.InfoContext(ctx, "no appointment for external id, skipping status change",
			"external_id", externalID,
			"status", status,
		)

		return OutcomeSkippedNoAppointment, nil
	}

	slog.InfoContext(ctx, "appointment status changed", "external_id", externalID, "status", status)

	return OutcomeStatusChanged, nil
}

func (n *Normalizer) appendLog(ctx context.Context, env *Envelope, raw []byte) {
	payload := json.RawMessage(raw)
	if len(payload) == 0 {
		encoded, err := json.Marshal(env)
		if err != nil {
			slog.ErrorContext(ctx, "failed to encode webhook payload for audit log", "event_type", env.Event, "error", err)

			return
		}

		payload = encoded
	}

	err := n.logs.Append(ctx, &models.CreateWebhookLogRequest{
		Provider:    Provider,
		EventType:   env.Event,
		Payload:     payload,
		ProcessedAt: n.now(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to append webhook log", "event_type", env.Event, "error", err)

		if n.metrics != nil {
			n.metrics.RecordAuditFailure(ctx, env.Event)
		}
	}
}

func upsertRequest(data *EventData, accountID uuid.UUID, now time.Time) *models.UpsertAppointmentRequest {
	return &models.UpsertAppointmentRequest{
		ExternalID:      data.ID.String(),
		AccountID:       accountID,
		ClientName:      data.ClientName,
		ClientEmail:     data.ClientEmail,
		ClientPhone:     data.ClientPhone,
		ServiceName:     data.ServiceName,
		AppointmentDate: data.AppointmentDate,
		AppointmentTime: data.AppointmentTime,
		Status:          MapStatus(data.Status),
		Notes:           data.Notes,
		UpdatedAt:       now,
	}
}
