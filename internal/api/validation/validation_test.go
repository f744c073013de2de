package validation

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Event string          `json:"event" validate:"required"`
	Data  *map[string]any `json:"data" validate:"required"`
}

type listFilters struct {
	EventType *string    `form:"event_type" validate:"omitempty,max=16,no_null_bytes"`
	Since     *time.Time `form:"since"`
	Limit     int        `form:"limit" validate:"omitempty,min=1,max=1000"`
}

func TestValidateStruct(t *testing.T) {
	data := map[string]any{"id": "ext-1"}

	tests := []struct {
		name    string
		in      envelope
		wantErr string
	}{
		{"valid", envelope{Event: "appointment.created", Data: &data}, ""},
		{"missing event", envelope{Data: &data}, "event is required"},
		{"missing data", envelope{Event: "appointment.created"}, "data is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.NotEmpty(t, GetValidationErrorDetails(err))
		})
	}
}

func TestValidateAndDecodeQueryParams(t *testing.T) {
	t.Run("decodes time and limit", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/webhook-logs?event_type=appointment.created&since=2024-01-09T12:00:00Z&limit=5", nil)

		var f listFilters
		require.NoError(t, ValidateAndDecodeQueryParams(r, &f))
		require.NotNil(t, f.EventType)
		assert.Equal(t, "appointment.created", *f.EventType)
		require.NotNil(t, f.Since)
		assert.Equal(t, time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC), f.Since.UTC())
		assert.Equal(t, 5, f.Limit)
	})

	tests := []struct {
		name  string
		query string
	}{
		{"bad time", "since=yesterday"},
		{"limit too large", "limit=5000"},
		{"null byte", "event_type=a%00b"},
		{"too long", "event_type=appointment.created.extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/v1/webhook-logs?"+tt.query, nil)

			var f listFilters
			assert.Error(t, ValidateAndDecodeQueryParams(r, &f))
		})
	}
}
