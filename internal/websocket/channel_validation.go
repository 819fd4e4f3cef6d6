package websocket

import (
	"fmt"
	"regexp"
)

// Channel name validation constants
const (
	MinChannelLength = 1
	MaxChannelLength = 64
)

// channelPattern matches valid channel names: alphanumeric, underscore, and hyphen
var channelPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ChannelValidationError represents a channel name validation error
type ChannelValidationError struct {
	Channel string
	Message string
}

func (e *ChannelValidationError) Error() string {
	return fmt.Sprintf("invalid channel %q: %s", e.Channel, e.Message)
}

// ValidateChannel validates a channel name against format and length constraints
func ValidateChannel(channel string) error {
	if len(channel) < MinChannelLength || len(channel) > MaxChannelLength {
		return &ChannelValidationError{
			Channel: channel,
			Message: fmt.Sprintf("must be %d-%d characters", MinChannelLength, MaxChannelLength),
		}
	}

	if !channelPattern.MatchString(channel) {
		return &ChannelValidationError{
			Channel: channel,
			Message: "only alphanumeric, underscore, and hyphen allowed",
		}
	}

	return nil
}
