package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the owner of appointments. ExternalProfessionalID links it to a
// professional in the external scheduling system; this service only reads it.
type Account struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name"`
	Email                  *string   `json:"email"`
	ExternalProfessionalID *string   `json:"external_professional_id"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
