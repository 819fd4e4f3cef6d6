package websocket

import (
	"encoding/json"
	"time"
)

// MessageType represents the type of message on the wire
type MessageType string

const (
	// Outbound frame types pushed to feed clients
	MessageTypeActivity MessageType = "activity"
	MessageTypeAlert    MessageType = "alert"

	// Inbound command types accepted from feed clients
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
)

// Message represents a frame pushed to feed clients
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// ChannelMessage represents a message to be broadcast to one channel
type ChannelMessage struct {
	Channel string
	Message *Message
}

// ClientCommand is a frame received from a feed client
type ClientCommand struct {
	Type    MessageType `json:"type"`
	Channel string      `json:"channel"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now(),
	}, nil
}

// ToJSON converts the message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func FromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Validate validates the message structure
func (m *Message) Validate() error {
	if m.Type == "" {
		return ErrInvalidMessage
	}
	if m.Payload == nil {
		return ErrInvalidMessage
	}
	return nil
}
