package models

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the internal appointment status enumeration.
type AppointmentStatus string

const (
	AppointmentStatusPending    AppointmentStatus = "pending"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
)

var validAppointmentStatuses = map[AppointmentStatus]bool{
	AppointmentStatusPending:    true,
	AppointmentStatusConfirmed:  true,
	AppointmentStatusCancelled:  true,
	AppointmentStatusCompleted:  true,
	AppointmentStatusInProgress: true,
}

// IsValid reports whether s is one of the internal statuses.
func (s AppointmentStatus) IsValid() bool {
	return validAppointmentStatuses[s]
}

// Appointment represents a row in the appointments table.
type Appointment struct {
	ID              uuid.UUID         `json:"id"`
	AccountID       uuid.UUID         `json:"account_id"`
	ExternalID      *string           `json:"external_id,omitempty"`
	ClientName      string            `json:"client_name"`
	ClientEmail     *string           `json:"client_email"`
	ClientPhone     *string           `json:"client_phone"`
	ServiceName     *string           `json:"service_name"`
	AppointmentDate string            `json:"appointment_date"`
	AppointmentTime string            `json:"appointment_time"`
	Status          AppointmentStatus `json:"status"`
	Notes           *string           `json:"notes"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// UpsertAppointmentRequest is the mutation payload built from an inbound event.
// Create writes CreatedAt = UpdatedAt; UpdateByID leaves created_at untouched.
type UpsertAppointmentRequest struct {
	ExternalID      string            `json:"external_id"`
	AccountID       uuid.UUID         `json:"account_id"`
	ClientName      string            `json:"client_name"`
	ClientEmail     *string           `json:"client_email"`
	ClientPhone     *string           `json:"client_phone"`
	ServiceName     *string           `json:"service_name"`
	AppointmentDate string            `json:"appointment_date"`
	AppointmentTime string            `json:"appointment_time"`
	Status          AppointmentStatus `json:"status"`
	Notes           *string           `json:"notes"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
