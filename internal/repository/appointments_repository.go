package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendopro/webhook/internal/apperrors"
	"github.com/agendopro/webhook/internal/models"
)

// Date and time round-trip as text; empty strings are stored as NULL.
const appointmentColumns = `
	id, account_id, external_id, client_name, client_email, client_phone, service_name,
	COALESCE(appointment_date::text, ''), COALESCE(appointment_time::text, ''),
	status, notes, created_at, updated_at
`

// AppointmentsRepository handles data access for appointments.
type AppointmentsRepository struct {
	db *pgxpool.Pool
}

// NewAppointmentsRepository creates a new appointments repository.
func NewAppointmentsRepository(db *pgxpool.Pool) *AppointmentsRepository {
	return &AppointmentsRepository{db: db}
}

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var a models.Appointment

	err := row.Scan(
		&a.ID, &a.AccountID, &a.ExternalID, &a.ClientName, &a.ClientEmail, &a.ClientPhone, &a.ServiceName,
		&a.AppointmentDate, &a.AppointmentTime, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// GetByExternalID retrieves the appointment carrying the given external id.
func (r *AppointmentsRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE external_id = $1`

	a, err := scanAppointment(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("appointment", "")
		}

		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return a, nil
}

// Create inserts an appointment with created_at = updated_at = req.UpdatedAt.
func (r *AppointmentsRepository) Create(ctx context.Context, req *models.UpsertAppointmentRequest) (*models.Appointment, error) {
	query := `
		INSERT INTO appointments (
			account_id, external_id, client_name, client_email, client_phone, service_name,
			appointment_date, appointment_time, status, notes, created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, $5, $6,
			NULLIF($7::text, '')::date, NULLIF($8::text, '')::time, $9, $10, $11, $11
		)
		RETURNING ` + appointmentColumns

	a, err := scanAppointment(r.db.QueryRow(ctx, query,
		req.AccountID, req.ExternalID, req.ClientName, req.ClientEmail, req.ClientPhone, req.ServiceName,
		req.AppointmentDate, req.AppointmentTime, string(req.Status), req.Notes, req.UpdatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewConflictError("appointment with this external_id already exists")
		}

		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	return a, nil
}

// UpdateByID replaces every mutable column of an appointment. created_at is left untouched.
func (r *AppointmentsRepository) UpdateByID(
	ctx context.Context, id uuid.UUID, req *models.UpsertAppointmentRequest,
) (*models.Appointment, error) {
	query := `
		UPDATE appointments SET
			account_id = $2,
			external_id = $3,
			client_name = $4,
			client_email = $5,
			client_phone = $6,
			service_name = $7,
			appointment_date = NULLIF($8::text, '')::date,
			appointment_time = NULLIF($9::text, '')::time,
			status = $10,
			notes = $11,
			updated_at = $12
		WHERE id = $1
		RETURNING ` + appointmentColumns

	a, err := scanAppointment(r.db.QueryRow(ctx, query,
		id, req.AccountID, req.ExternalID, req.ClientName, req.ClientEmail, req.ClientPhone, req.ServiceName,
		req.AppointmentDate, req.AppointmentTime, string(req.Status), req.Notes, req.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("appointment", "")
		}

		if isUniqueViolation(err) {
			return nil, apperrors.NewConflictError("appointment with this external_id already exists")
		}

		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	return a, nil
}

// SetStatusByExternalID changes status and updated_at only, returning the number of rows changed.
func (r *AppointmentsRepository) SetStatusByExternalID(
	ctx context.Context, externalID string, status models.AppointmentStatus, updatedAt time.Time,
) (int64, error) {
	query := `UPDATE appointments SET status = $2, updated_at = $3 WHERE external_id = $1`

	tag, err := r.db.Exec(ctx, query, externalID, string(status), updatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to set appointment status: %w", err)
	}

	return tag.RowsAffected(), nil
}
