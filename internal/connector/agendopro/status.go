package agendopro

import (
	"strings"

	"github.com/agendopro/webhook/internal/models"
)

// externalStatuses maps the external status vocabulary (lower-cased) to internal statuses.
var externalStatuses = map[string]models.AppointmentStatus{
	"agendado":     models.AppointmentStatusPending,
	"confirmado":   models.AppointmentStatusConfirmed,
	"cancelado":    models.AppointmentStatusCancelled,
	"finalizado":   models.AppointmentStatusCompleted,
	"em_andamento": models.AppointmentStatusInProgress,
}

// MapStatus translates an external status to the internal enumeration.
// It is total: matching is case-insensitive and anything unrecognized, including
// the empty string, maps to pending.
func MapStatus(external string) models.AppointmentStatus {
	if status, ok := externalStatuses[strings.ToLower(strings.TrimSpace(external))]; ok {
		return status
	}

	return models.AppointmentStatusPending
}
