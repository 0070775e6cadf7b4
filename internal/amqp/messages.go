package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Change operations carried by RecordChangedMessage.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
	OpReload  = "reload"
)

// RecordChangedMessage tells consumers the spreadsheet changed. It carries no
// row contents; the worker reads the sheet itself, since row positions from
// the publisher may already be stale.
type RecordChangedMessage struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Row       int       `json:"row,omitempty"`
	Date      string    `json:"date,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordChangedMessage stamps a fresh message ID and the current time.
func NewRecordChangedMessage(op string, row int, date string) *RecordChangedMessage {
	return &RecordChangedMessage{
		ID:        uuid.NewString(),
		Operation: op,
		Row:       row,
		Date:      date,
		Timestamp: time.Now().UTC(),
	}
}

func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedMessageFromJSON decodes and validates a message body.
func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	switch msg.Operation {
	case OpCreated, OpUpdated, OpDeleted, OpReload:
	default:
		return nil, errors.New("unknown operation " + msg.Operation)
	}
	return &msg, nil
}
