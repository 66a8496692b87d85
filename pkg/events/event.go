// Package events describes messages carried by the realtime feed.
package events

import (
	"encoding/json"
	"strings"
	"time"
)

const subjectPrefix = "events."

// LeadCreated is emitted by the backend when the lead finder stores a new lead.
const LeadCreated = "LEAD_CREATED"

type Event interface {
	EventType() string
	Payload() json.RawMessage
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       json.RawMessage
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() json.RawMessage {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Subject maps an event type to its feed subject.
func Subject(eventType string) string {
	return subjectPrefix + eventType
}

// TypeFromSubject is the inverse of Subject.
func TypeFromSubject(subject string) string {
	return strings.TrimPrefix(subject, subjectPrefix)
}
