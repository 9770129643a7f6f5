package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated    EventType = "created"
	EventTypeUpdated    EventType = "updated"
	EventTypeDeleted    EventType = "deleted"
	EventTypeReconciled EventType = "reconciled"
	EventTypeCompleted  EventType = "completed"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeRule        EntityType = "rule"
	EntityTypeTransaction EntityType = "transaction"
	EntityTypeEnvelope    EntityType = "envelope"
	EntityTypeSettlement  EntityType = "settlement"
	EntityTypeGeneration  EntityType = "generation"
)

// Event is the message pushed to clients. Seq is assigned by the hub and
// increases by one per event of the same owner, starting at 1.
type Event struct {
	Seq       uint64      `json:"seq"`
	Type      string      `json:"type"` // "<entity>.<action>", e.g. "envelope.updated"
	Entity    EntityType  `json:"entity"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
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

// RuleCreated creates a rule.created event
func RuleCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeRule, payload)
}

// RuleUpdated creates a rule.updated event
func RuleUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeRule, payload)
}

// RuleDeleted creates a rule.deleted event
func RuleDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeRule, payload)
}

// TransactionCreated creates a transaction.created event
func TransactionCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeTransaction, payload)
}

// TransactionUpdated creates a transaction.updated event
func TransactionUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeTransaction, payload)
}

// TransactionDeleted creates a transaction.deleted event
func TransactionDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeTransaction, payload)
}

// EnvelopeCreated creates an envelope.created event
func EnvelopeCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeEnvelope, payload)
}

// EnvelopeUpdated creates an envelope.updated event
func EnvelopeUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeEnvelope, payload)
}

// EnvelopeDeleted creates an envelope.deleted event
func EnvelopeDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeEnvelope, payload)
}

// SettlementsReconciled creates a settlement.reconciled event
func SettlementsReconciled(payload interface{}) Event {
	return NewEvent(EventTypeReconciled, EntityTypeSettlement, payload)
}

// GenerationCompleted creates a generation.completed event
func GenerationCompleted(payload interface{}) Event {
	return NewEvent(EventTypeCompleted, EntityTypeGeneration, payload)
}
