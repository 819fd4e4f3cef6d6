package websocket

import "errors"

var (
	// ErrInvalidMessage indicates a message missing required fields
	ErrInvalidMessage = errors.New("invalid message")

	// ErrMaxConnections indicates the hub rejected a connection at capacity
	ErrMaxConnections = errors.New("maximum connections reached")
)
