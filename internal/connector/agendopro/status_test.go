package agendopro

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agendopro/webhook/internal/models"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		external string
		want     models.AppointmentStatus
	}{
		{"agendado", models.AppointmentStatusPending},
		{"confirmado", models.AppointmentStatusConfirmed},
		{"cancelado", models.AppointmentStatusCancelled},
		{"finalizado", models.AppointmentStatusCompleted},
		{"em_andamento", models.AppointmentStatusInProgress},
		{"CONFIRMADO", models.AppointmentStatusConfirmed},
		{"Cancelado", models.AppointmentStatusCancelled},
		{"EM_ANDAMENTO", models.AppointmentStatusInProgress},
		{"  finalizado ", models.AppointmentStatusCompleted},
		// Unrecognized values default to pending rather than failing the event.
		{"xyz-unknown", models.AppointmentStatusPending},
		{"confirmed", models.AppointmentStatusPending},
		{"em andamento", models.AppointmentStatusPending},
		{"", models.AppointmentStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.external, func(t *testing.T) {
			got := MapStatus(tt.external)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}
}
