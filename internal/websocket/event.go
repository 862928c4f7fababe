package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeUpdated EventType = "updated"
	EventTypeDeleted EventType = "deleted"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeGroup EntityType = "group"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "group.updated"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "group"
	Payload   interface{} `json:"payload"`   // Full entity data
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

// GroupUpdated creates a group.updated event
func GroupUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeGroup, payload)
}

// GroupDeleted creates a group.deleted event
func GroupDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeGroup, payload)
}

// EndsGroup reports whether no further events will follow for the group
func (e Event) EndsGroup() bool {
	return e.Entity == EntityTypeGroup && e.Type == fmt.Sprintf("%s.%s", EntityTypeGroup, EventTypeDeleted)
}
