package feed

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

type failingSink struct{ err error }

func (s *failingSink) OnItem(context.Context, *ActivityItem) error { return s.err }

func TestBellSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewBellSink(&buf)

	item := makeItem("1")
	if err := sink.OnItem(context.Background(), &item); err != nil {
		t.Fatalf("OnItem failed: %v", err)
	}
	if buf.String() != "\a" {
		t.Errorf("expected a single bell character, got %q", buf.String())
	}
}

func TestMultiSink(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	sink := MultiSink(first, nil, second)

	item := makeItem("1")
	if err := sink.OnItem(context.Background(), &item); err != nil {
		t.Fatalf("OnItem failed: %v", err)
	}
	if len(first.seen()) != 1 || len(second.seen()) != 1 {
		t.Error("MultiSink did not fan out to all sinks")
	}
}

func TestMultiSinkKeepsFirstError(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	after := &recordingSink{}
	sink := MultiSink(&failingSink{err: errA}, &failingSink{err: errB}, after)

	item := makeItem("1")
	err := sink.OnItem(context.Background(), &item)
	if !errors.Is(err, errA) {
		t.Errorf("expected first error, got %v", err)
	}
	if len(after.seen()) != 1 {
		t.Error("a failing sink must not stop later sinks")
	}
}
