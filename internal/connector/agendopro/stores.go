package agendopro

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agendopro/webhook/internal/models"
)

// AccountDirectory resolves the owning account of an external professional.
type AccountDirectory interface {
	// FindByProfessionalID returns *apperrors.NotFoundError when no account is linked.
	FindByProfessionalID(ctx context.Context, professionalID string) (*models.Account, error)
}

// AppointmentStore is the appointments table as seen by the normalizer.
type AppointmentStore interface {
	// GetByExternalID returns *apperrors.NotFoundError on miss.
	GetByExternalID(ctx context.Context, externalID string) (*models.Appointment, error)
	// Create returns *apperrors.ConflictError when external_id is already taken.
	Create(ctx context.Context, req *models.UpsertAppointmentRequest) (*models.Appointment, error)
	UpdateByID(ctx context.Context, id uuid.UUID, req *models.UpsertAppointmentRequest) (*models.Appointment, error)
	// SetStatusByExternalID returns the number of rows changed.
	SetStatusByExternalID(ctx context.Context, externalID string, status models.AppointmentStatus, updatedAt time.Time) (int64, error)
}

// WebhookLogStore appends audit rows.
type WebhookLogStore interface {
	Append(ctx context.Context, req *models.CreateWebhookLogRequest) error
}
