package agendopro

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the JSON body of an inbound webhook POST.
type Envelope struct {
	Event string     `json:"event" validate:"required"`
	Data  *EventData `json:"data" validate:"required"`
	// Timestamp is only carried into the audit row (as part of the raw body).
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// EventData describes one appointment in the external system's vocabulary.
type EventData struct {
	ID              FlexString `json:"id"`
	ClientName      string     `json:"client_name"`
	ClientEmail     *string    `json:"client_email"`
	ClientPhone     *string    `json:"client_phone"`
	ServiceName     *string    `json:"service_name"`
	AppointmentDate string     `json:"appointment_date"`
	AppointmentTime string     `json:"appointment_time"`
	Status          string     `json:"status"`
	Notes           *string    `json:"notes"`
	ProfessionalID  FlexString `json:"professional_id"`
}

// FlexString accepts a JSON string or number and keeps its textual form.
// The external system is not consistent about quoting identifiers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)

	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""

		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode string identifier: %w", err)
		}

		*f = FlexString(s)

		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("identifier must be a string or number: %w", err)
		}

		*f = FlexString(n.String())

		return nil
	}
}

// String returns the identifier text.
func (f FlexString) String() string {
	return string(f)
}
