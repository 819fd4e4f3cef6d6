package feed

import (
	"context"
	"io"

	"cad-realtime/pkg/discord"
)

// Sink receives accepted activity items for side effects. Sink errors are
// swallowed by the client; a failing sink never affects ingestion.
type Sink interface {
	OnItem(ctx context.Context, item *ActivityItem) error
}

// WebhookSink forwards items to a Discord webhook. It is the console's
// alerting channel for error and critical activity.
type WebhookSink struct {
	client *discord.Discord
}

// NewWebhookSink creates a sink over an initialized webhook client
func NewWebhookSink(client *discord.Discord) *WebhookSink {
	return &WebhookSink{client: client}
}

func (s *WebhookSink) OnItem(ctx context.Context, item *ActivityItem) error {
	msgType := discord.MessageTypeError
	if item.Severity == SeverityCritical {
		msgType = discord.MessageTypeCritical
	}

	fields := map[string]string{
		"Type": string(item.Type),
	}
	if item.Severity != "" {
		fields["Severity"] = string(item.Severity)
	}
	if item.Resource != nil {
		fields["Resource"] = item.Resource.Type + "/" + item.Resource.Name
	}
	if item.User != nil {
		fields["User"] = item.User.Name
	}

	return s.client.SendAlert(ctx, msgType, item.Title, item.Description, fields)
}

// BellSink writes a terminal bell for each accepted item, the console's
// audio cue. Write errors are reported but carry no consequence.
type BellSink struct {
	w io.Writer
}

// NewBellSink creates a bell sink writing to w
func NewBellSink(w io.Writer) *BellSink {
	return &BellSink{w: w}
}

func (s *BellSink) OnItem(_ context.Context, _ *ActivityItem) error {
	_, err := s.w.Write([]byte{'\a'})
	return err
}

// multiSink fans an item out to several sinks, keeping the first error
type multiSink []Sink

// MultiSink combines sinks into one. Nil sinks are skipped.
func MultiSink(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) OnItem(ctx context.Context, item *ActivityItem) error {
	var firstErr error
	for _, s := range m {
		if err := s.OnItem(ctx, item); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
