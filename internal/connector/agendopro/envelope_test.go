package agendopro

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_Unmarshal(t *testing.T) {
	body := `{
		"event": "appointment.created",
		"data": {
			"id": "ext-1",
			"client_name": "Ana",
			"client_email": null,
			"client_phone": "+55 11 99999-0000",
			"service_name": "Corte",
			"appointment_date": "2024-01-10",
			"appointment_time": "09:00",
			"status": "agendado",
			"professional_id": "prof-1"
		},
		"timestamp": "2024-01-09T12:00:00Z"
	}`

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(body), &env))

	assert.Equal(t, "appointment.created", env.Event)
	require.NotNil(t, env.Data)
	assert.Equal(t, "ext-1", env.Data.ID.String())
	assert.Equal(t, "Ana", env.Data.ClientName)
	assert.Nil(t, env.Data.ClientEmail)
	require.NotNil(t, env.Data.ClientPhone)
	assert.Equal(t, "+55 11 99999-0000", *env.Data.ClientPhone)
	assert.Nil(t, env.Data.Notes)
	assert.Equal(t, "prof-1", env.Data.ProfessionalID.String())
	assert.JSONEq(t, `"2024-01-09T12:00:00Z"`, string(env.Timestamp))
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"string", `"ext-1"`, "ext-1", false},
		{"integer", `12345`, "12345", false},
		{"large integer keeps digits", `9007199254740993`, "9007199254740993", false},
		{"null", `null`, "", false},
		{"bool", `true`, "", true},
		{"object", `{"a":1}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexString

			err := json.Unmarshal([]byte(tt.in), &f)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}
}

func TestEnvelope_NumericIdentifiers(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"event":"appointment.cancelled","data":{"id":42,"professional_id":7}}`), &env))

	assert.Equal(t, "42", env.Data.ID.String())
	assert.Equal(t, "7", env.Data.ProfessionalID.String())
}
