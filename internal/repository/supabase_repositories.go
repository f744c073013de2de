package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agendopro/webhook/internal/apperrors"
	"github.com/agendopro/webhook/internal/models"
	"github.com/agendopro/webhook/pkg/supabase"
)

// PostgREST is the subset of *supabase.Client the hosted-store repositories use.
type PostgREST interface {
	Select(ctx context.Context, table string, q *supabase.Query, out any) error
	SelectWithCount(ctx context.Context, table string, q *supabase.Query, out any) (int64, error)
	Insert(ctx context.Context, table string, row, out any) error
	Update(ctx context.Context, table string, q *supabase.Query, patch, out any) error
}

// SupabaseAccountsRepository reads accounts through PostgREST.
type SupabaseAccountsRepository struct {
	client PostgREST
}

// NewSupabaseAccountsRepository creates an accounts repository over PostgREST.
func NewSupabaseAccountsRepository(client PostgREST) *SupabaseAccountsRepository {
	return &SupabaseAccountsRepository{client: client}
}

// FindByProfessionalID returns the account linked to an external professional.
func (r *SupabaseAccountsRepository) FindByProfessionalID(ctx context.Context, professionalID string) (*models.Account, error) {
	if professionalID == "" {
		return nil, apperrors.NewNotFoundError("account", "")
	}

	var accounts []models.Account

	q := supabase.NewQuery().Select("*").Eq("external_professional_id", professionalID).Limit(1)
	if err := r.client.Select(ctx, "accounts", q, &accounts); err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if len(accounts) == 0 {
		return nil, apperrors.NewNotFoundError("account", "")
	}

	return &accounts[0], nil
}

// appointmentRow is the write shape of an appointments row. Empty date and time are sent as null.
type appointmentRow struct {
	AccountID       uuid.UUID  `json:"account_id"`
	ExternalID      string     `json:"external_id"`
	ClientName      string     `json:"client_name"`
	ClientEmail     *string    `json:"client_email"`
	ClientPhone     *string    `json:"client_phone"`
	ServiceName     *string    `json:"service_name"`
	AppointmentDate *string    `json:"appointment_date"`
	AppointmentTime *string    `json:"appointment_time"`
	Status          string     `json:"status"`
	Notes           *string    `json:"notes"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func newAppointmentRow(req *models.UpsertAppointmentRequest) appointmentRow {
	return appointmentRow{
		AccountID:       req.AccountID,
		ExternalID:      req.ExternalID,
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		ClientPhone:     req.ClientPhone,
		ServiceName:     req.ServiceName,
		AppointmentDate: nonEmpty(req.AppointmentDate),
		AppointmentTime: nonEmpty(req.AppointmentTime),
		Status:          string(req.Status),
		Notes:           req.Notes,
		UpdatedAt:       req.UpdatedAt,
	}
}

// appointmentResult is the read shape; date and time come back null when unset.
type appointmentResult struct {
	models.Appointment
	AppointmentDate *string `json:"appointment_date"`
	AppointmentTime *string `json:"appointment_time"`
}

func (r appointmentResult) toModel() *models.Appointment {
	a := r.Appointment
	a.AppointmentDate = deref(r.AppointmentDate)
	a.AppointmentTime = deref(r.AppointmentTime)

	return &a
}

// SupabaseAppointmentsRepository handles appointments through PostgREST.
type SupabaseAppointmentsRepository struct {
	client PostgREST
}

// NewSupabaseAppointmentsRepository creates an appointments repository over PostgREST.
func NewSupabaseAppointmentsRepository(client PostgREST) *SupabaseAppointmentsRepository {
	return &SupabaseAppointmentsRepository{client: client}
}

// GetByExternalID retrieves the appointment carrying the given external id.
func (r *SupabaseAppointmentsRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Appointment, error) {
	var rows []appointmentResult

	q := supabase.NewQuery().Select("*").Eq("external_id", externalID).Limit(1)
	if err := r.client.Select(ctx, "appointments", q, &rows); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	if len(rows) == 0 {
		return nil, apperrors.NewNotFoundError("appointment", "")
	}

	return rows[0].toModel(), nil
}

// Create inserts an appointment with created_at = updated_at = req.UpdatedAt.
func (r *SupabaseAppointmentsRepository) Create(ctx context.Context, req *models.UpsertAppointmentRequest) (*models.Appointment, error) {
	row := newAppointmentRow(req)
	createdAt := req.UpdatedAt
	row.CreatedAt = &createdAt

	var rows []appointmentResult
	if err := r.client.Insert(ctx, "appointments", row, &rows); err != nil {
		if supabase.IsConflict(err) {
			return nil, apperrors.NewConflictError("appointment with this external_id already exists")
		}

		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to create appointment: empty representation")
	}

	return rows[0].toModel(), nil
}

// UpdateByID replaces every mutable column of an appointment. created_at is not sent.
func (r *SupabaseAppointmentsRepository) UpdateByID(
	ctx context.Context, id uuid.UUID, req *models.UpsertAppointmentRequest,
) (*models.Appointment, error) {
	var rows []appointmentResult

	q := supabase.NewQuery().Eq("id", id.String())
	if err := r.client.Update(ctx, "appointments", q, newAppointmentRow(req), &rows); err != nil {
		if supabase.IsConflict(err) {
			return nil, apperrors.NewConflictError("appointment with this external_id already exists")
		}

		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	if len(rows) == 0 {
		return nil, apperrors.NewNotFoundError("appointment", "")
	}

	return rows[0].toModel(), nil
}

// SetStatusByExternalID changes status and updated_at only, returning the number of rows changed.
func (r *SupabaseAppointmentsRepository) SetStatusByExternalID(
	ctx context.Context, externalID string, status models.AppointmentStatus, updatedAt time.Time,
) (int64, error) {
	patch := map[string]any{"status": string(status), "updated_at": updatedAt}

	var rows []struct {
		ID uuid.UUID `json:"id"`
	}

	q := supabase.NewQuery().Select("id").Eq("external_id", externalID)
	if err := r.client.Update(ctx, "appointments", q, patch, &rows); err != nil {
		return 0, fmt.Errorf("failed to set appointment status: %w", err)
	}

	return int64(len(rows)), nil
}

// SupabaseWebhookLogsRepository handles webhook_logs through PostgREST.
type SupabaseWebhookLogsRepository struct {
	client PostgREST
}

// NewSupabaseWebhookLogsRepository creates a webhook logs repository over PostgREST.
func NewSupabaseWebhookLogsRepository(client PostgREST) *SupabaseWebhookLogsRepository {
	return &SupabaseWebhookLogsRepository{client: client}
}

type webhookLogRow struct {
	Provider    string          `json:"provider"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// Append inserts one audit row.
func (r *SupabaseWebhookLogsRepository) Append(ctx context.Context, req *models.CreateWebhookLogRequest) error {
	row := webhookLogRow{
		Provider:    req.Provider,
		EventType:   req.EventType,
		Payload:     req.Payload,
		ProcessedAt: req.ProcessedAt,
	}

	if err := r.client.Insert(ctx, "webhook_logs", row, nil); err != nil {
		return fmt.Errorf("failed to append webhook log: %w", err)
	}

	return nil
}

func webhookLogQuery(filters *models.ListWebhookLogsFilters) *supabase.Query {
	q := supabase.NewQuery()

	if filters.Provider != nil {
		q.Eq("provider", *filters.Provider)
	}

	if filters.EventType != nil {
		q.Eq("event_type", *filters.EventType)
	}

	if filters.Since != nil {
		q.Gte("processed_at", filters.Since.UTC().Format(time.RFC3339Nano))
	}

	if filters.Until != nil {
		q.Lt("processed_at", filters.Until.UTC().Format(time.RFC3339Nano))
	}

	return q
}

// List retrieves audit rows, newest first.
func (r *SupabaseWebhookLogsRepository) List(ctx context.Context, filters *models.ListWebhookLogsFilters) ([]models.WebhookLog, error) {
	q := webhookLogQuery(filters).Select("*").Order("processed_at.desc,id.desc")

	if filters.Limit > 0 {
		q.Limit(filters.Limit)
	}

	if filters.Offset > 0 {
		q.Offset(filters.Offset)
	}

	logs := []models.WebhookLog{}
	if err := r.client.Select(ctx, "webhook_logs", q, &logs); err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}

	return logs, nil
}

// Count returns the number of audit rows matching the filters.
func (r *SupabaseWebhookLogsRepository) Count(ctx context.Context, filters *models.ListWebhookLogsFilters) (int64, error) {
	var ids []struct {
		ID uuid.UUID `json:"id"`
	}

	total, err := r.client.SelectWithCount(ctx, "webhook_logs", webhookLogQuery(filters).Select("id").Limit(1), &ids)
	if err != nil {
		return 0, fmt.Errorf("failed to count webhook logs: %w", err)
	}

	return total, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
