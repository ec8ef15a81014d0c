package amqp

import (
	"encoding/json"
	"time"
)

// Routing keys for the ledger exchange. The sync queue is bound to both.
const (
	RoutingKeyExpenseSync = "expense.sync"
	RoutingKeySettlement  = "settlement.recorded"
)

// ExpenseSyncMessage is a lightweight message for syncing an expense to the
// export sheet. It carries only the ID, the worker fetches the full expense
// from the database.
type ExpenseSyncMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseSyncMessage creates a new sync message for the given expense ID
func NewExpenseSyncMessage(id string) *ExpenseSyncMessage {
	return &ExpenseSyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseSyncMessageFromJSON creates a message from JSON bytes
func ExpenseSyncMessageFromJSON(data []byte) (*ExpenseSyncMessage, error) {
	var msg ExpenseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SettlementMessage announces that the ledger was settled. The worker uses it
// to append a settlement report to the export sheet.
type SettlementMessage struct {
	SettledCount int64     `json:"settled_count"`
	TotalCents   int64     `json:"total_cents"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// NewSettlementMessage creates a new settlement message
func NewSettlementMessage(settledCount, totalCents int64) *SettlementMessage {
	return &SettlementMessage{
		SettledCount: settledCount,
		TotalCents:   totalCents,
		RecordedAt:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SettlementMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SettlementMessageFromJSON creates a message from JSON bytes
func SettlementMessageFromJSON(data []byte) (*SettlementMessage, error) {
	var msg SettlementMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
