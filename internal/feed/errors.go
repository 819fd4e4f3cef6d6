package feed

import "errors"

var (
	// ErrInvalidItem indicates an activity item that fails validation
	ErrInvalidItem = errors.New("invalid activity item")

	// ErrMalformedFrame indicates a frame that could not be decoded as JSON
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrClosed indicates an operation on a closed client
	ErrClosed = errors.New("feed client closed")
)
