// Package datatypes defines shared types for inbound scheduling events.
package datatypes

// EventType represents an inbound appointment event kind as an enum.
// Use String() to get the wire representation.
type EventType uint16

// Event type constants; string form is given in eventTypeMap.
const (
	AppointmentCreated EventType = iota
	AppointmentUpdated
	AppointmentCancelled
	AppointmentConfirmed
)

// eventTypeMap maps wire strings to EventType enums.
// This is the single source of truth for recognized event kinds.
var eventTypeMap = map[string]EventType{
	"appointment.created":   AppointmentCreated,
	"appointment.updated":   AppointmentUpdated,
	"appointment.cancelled": AppointmentCancelled,
	"appointment.confirmed": AppointmentConfirmed,
}

var reverseEventTypeMap map[EventType]string

func init() {
	reverseEventTypeMap = make(map[EventType]string, len(eventTypeMap))
	for str, eventType := range eventTypeMap {
		reverseEventTypeMap[eventType] = str
	}
}

// String returns the wire representation of an EventType.
// Returns empty string for invalid event types.
func (et EventType) String() string {
	return reverseEventTypeMap[et]
}

// IsUpsert reports whether the event carries a full appointment to create or update.
func (et EventType) IsUpsert() bool {
	return et == AppointmentCreated || et == AppointmentUpdated
}

// ParseEventType converts a wire string to an EventType enum.
// Matching is exact; unknown kinds return false and are not an error for callers.
func ParseEventType(s string) (EventType, bool) {
	et, ok := eventTypeMap[s]

	return et, ok
}

// IsValidEventType checks if an event type string is recognized.
func IsValidEventType(eventType string) bool {
	_, ok := eventTypeMap[eventType]

	return ok
}
