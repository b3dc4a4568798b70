// Package event defines domain events published after a state change commits.
// Events drive notifications only; nothing in the approval core consumes them.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Well-known payload keys
const (
	KeyRecipientUserID = "recipient_user_id"
	KeyDelegatorID     = "delegator_id"
	KeyDelegateID      = "delegate_id"
	KeyStartDate       = "start_date"
	KeyEndDate         = "end_date"
	KeyReason          = "reason"
	KeyBasis           = "basis"
)

// Event represents a domain event
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	SubjectID     int64                  `json:"subject_id"`
	ActorID       string                 `json:"actor_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with generated ID and timestamp
func NewEvent(eventType Type, subjectID int64, actorID string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		SubjectID:     subjectID,
		ActorID:       actorID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// WithPayload returns a copy of the event with an added payload key
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
