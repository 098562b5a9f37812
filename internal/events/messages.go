package events

import (
	"encoding/json"
	"time"

	"kharcha/internal/core"
)

// ExpenseRecordedMessage carries the fields external consumers need to react
// to a newly recorded expense without reading the store.
type ExpenseRecordedMessage struct {
	Event     string    `json:"event"`
	ID        int64     `json:"id"`
	Amount    float64   `json:"amount"`
	Category  string    `json:"category,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseRecordedMessage(e core.Expense) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		Event:     "expense.recorded",
		ID:        e.ID,
		Amount:    e.Amount,
		Category:  e.Category,
		Timestamp: e.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseRecordedMessageFromJSON creates a message from JSON bytes
func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
