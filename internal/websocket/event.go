package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to the entity
type EventType string

const (
	EventTypeUpdated   EventType = "updated"
	EventTypeSignedOut EventType = "signed_out"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeProfile EntityType = "profile"
	EntityTypeAvatar  EntityType = "avatar"
	EntityTypeSession EntityType = "session"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "profile.updated"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "profile"
	Payload   interface{} `json:"payload"`   // Entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ProfileUpdated creates a profile.updated event
func ProfileUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeProfile, payload)
}

// AvatarUpdated creates an avatar.updated event
func AvatarUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeAvatar, payload)
}

// SessionSignedOut creates a session.signed_out event
func SessionSignedOut(payload interface{}) Event {
	return NewEvent(EventTypeSignedOut, EntityTypeSession, payload)
}
