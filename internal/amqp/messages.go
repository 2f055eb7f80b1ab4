package amqp

import (
	"encoding/json"
	"time"
)

// InvalidationMessage tells downstream consumers that the data behind
// a path changed and any cached view of it is stale.
type InvalidationMessage struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInvalidationMessage creates an invalidation for the given path.
func NewInvalidationMessage(path string) *InvalidationMessage {
	return &InvalidationMessage{
		Path:      path,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON creates a message from JSON bytes
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
