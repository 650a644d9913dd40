package amqp

import (
	"encoding/json"
	"time"

	"budgetbook/internal/store"

	"github.com/google/uuid"
)

// ChangeMessage is the lightweight "data changed" notification. It carries only the
// identity of the mutated row; consumers re-read whatever view they maintain.
type ChangeMessage struct {
	MessageID string    `json:"message_id"`
	Table     string    `json:"table"`
	Kind      string    `json:"kind"`
	RecordID  int64     `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage creates a message for a store change event.
func NewChangeMessage(ev store.ChangeEvent) *ChangeMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ChangeMessage{
		MessageID: uuid.NewString(),
		Table:     string(ev.Table),
		Kind:      string(ev.Kind),
		RecordID:  ev.ID,
		Timestamp: ts.UTC(),
	}
}

// Event converts the message back into a store change event.
func (m *ChangeMessage) Event() store.ChangeEvent {
	return store.ChangeEvent{
		Table: store.Table(m.Table),
		Kind:  store.ChangeKind(m.Kind),
		ID:    m.RecordID,
		At:    m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
