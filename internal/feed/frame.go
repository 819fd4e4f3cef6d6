package feed

import (
	"encoding/json"
	"fmt"
)

// Wire frame type tags understood by the feed
const (
	frameTypeSubscribe = "subscribe"
	frameTypeActivity  = "activity"
	frameTypeAlert     = "alert"
)

// SubscribeCommand is sent once after the connection opens
type SubscribeCommand struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// EncodeSubscribe encodes the subscribe command for a channel
func EncodeSubscribe(channel string) ([]byte, error) {
	return json.Marshal(SubscribeCommand{Type: frameTypeSubscribe, Channel: channel})
}

// FrameKind discriminates decoded inbound frames
type FrameKind int

const (
	// FrameUnknown covers frame types this client does not recognize.
	// Unknown frames are dropped without error for forward compatibility.
	FrameUnknown FrameKind = iota
	FrameActivity
	FrameAlert
)

// Frame is a decoded inbound frame
type Frame struct {
	Kind FrameKind
	Item *ActivityItem
}

type rawFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeFrame decodes a single inbound text frame.
// Alert payloads arrive without a type field and are tagged as alerts here.
// The read flag is always reset on receipt, regardless of what the sender set.
func DecodeFrame(data []byte) (Frame, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch raw.Type {
	case frameTypeActivity:
		item, err := decodeItem(raw.Payload)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Kind: FrameActivity, Item: item}, nil

	case frameTypeAlert:
		item, err := decodeItem(raw.Payload)
		if err != nil {
			return Frame{}, err
		}
		item.Type = ActivityTypeAlert
		return Frame{Kind: FrameAlert, Item: item}, nil

	default:
		return Frame{Kind: FrameUnknown}, nil
	}
}

func decodeItem(payload json.RawMessage) (*ActivityItem, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformedFrame)
	}
	var item ActivityItem
	if err := json.Unmarshal(payload, &item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	item.Read = false
	return &item, nil
}
