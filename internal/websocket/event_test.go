package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"id":     "3f1c",
		"amount": "100.00",
	}

	before := time.Now()
	evt := NewEvent(EventTypeCreated, EntityTypeEnvelope, payload)
	after := time.Now()

	assert.Equal(t, "envelope.created", evt.Type)
	assert.Equal(t, EntityTypeEnvelope, evt.Entity)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, !evt.Timestamp.Before(before) && !evt.Timestamp.After(after))
}

func TestEvent_ToJSON(t *testing.T) {
	evt := NewEvent(EventTypeReconciled, EntityTypeSettlement, map[string]interface{}{"created": float64(1)})

	data, err := evt.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "settlement.reconciled", decoded["type"])
	assert.Equal(t, "settlement", decoded["entity"])
	assert.NotNil(t, decoded["payload"])
	assert.NotNil(t, decoded["timestamp"])
}

func TestEventHelpers(t *testing.T) {
	payload := map[string]interface{}{"id": "x"}

	tests := []struct {
		name     string
		build    func(interface{}) Event
		wantType string
		entity   EntityType
	}{
		{"RuleCreated", RuleCreated, "rule.created", EntityTypeRule},
		{"RuleUpdated", RuleUpdated, "rule.updated", EntityTypeRule},
		{"RuleDeleted", RuleDeleted, "rule.deleted", EntityTypeRule},
		{"TransactionCreated", TransactionCreated, "transaction.created", EntityTypeTransaction},
		{"TransactionUpdated", TransactionUpdated, "transaction.updated", EntityTypeTransaction},
		{"TransactionDeleted", TransactionDeleted, "transaction.deleted", EntityTypeTransaction},
		{"EnvelopeCreated", EnvelopeCreated, "envelope.created", EntityTypeEnvelope},
		{"EnvelopeUpdated", EnvelopeUpdated, "envelope.updated", EntityTypeEnvelope},
		{"EnvelopeDeleted", EnvelopeDeleted, "envelope.deleted", EntityTypeEnvelope},
		{"SettlementsReconciled", SettlementsReconciled, "settlement.reconciled", EntityTypeSettlement},
		{"GenerationCompleted", GenerationCompleted, "generation.completed", EntityTypeGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := tt.build(payload)
			assert.Equal(t, tt.wantType, evt.Type)
			assert.Equal(t, tt.entity, evt.Entity)
			assert.Equal(t, payload, evt.Payload)
		})
	}
}
