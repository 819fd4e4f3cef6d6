package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// testLogger implements log.Logger for testing
type testLogger struct{}

func (m *testLogger) Debug(ctx context.Context, arg ...any)                    {}
func (m *testLogger) Debugf(ctx context.Context, template string, arg ...any)  {}
func (m *testLogger) Info(ctx context.Context, arg ...any)                     {}
func (m *testLogger) Infof(ctx context.Context, template string, arg ...any)   {}
func (m *testLogger) Warn(ctx context.Context, arg ...any)                     {}
func (m *testLogger) Warnf(ctx context.Context, template string, arg ...any)   {}
func (m *testLogger) Error(ctx context.Context, arg ...any)                    {}
func (m *testLogger) Errorf(ctx context.Context, template string, arg ...any)  {}
func (m *testLogger) Fatal(ctx context.Context, arg ...any)                    {}
func (m *testLogger) Fatalf(ctx context.Context, template string, arg ...any)  {}
func (m *testLogger) DPanic(ctx context.Context, arg ...any)                   {}
func (m *testLogger) DPanicf(ctx context.Context, template string, arg ...any) {}
func (m *testLogger) Panic(ctx context.Context, arg ...any)                    {}
func (m *testLogger) Panicf(ctx context.Context, template string, arg ...any)  {}

func newTestConnection(hub *Hub, userID string) *Connection {
	return &Connection{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		logger: &testLogger{},
	}
}

func startHub(t *testing.T, maxConnections int) *Hub {
	t.Helper()
	hub := NewHub(&testLogger{}, maxConnections)
	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hub.Shutdown(ctx)
	})
	return hub
}

func waitForStats(t *testing.T, hub *Hub, cond func(HubStats) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond(hub.GetStats()) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for hub state, stats: %+v", hub.GetStats())
}

func receiveFrame(t *testing.T, conn *Connection) *Message {
	t.Helper()
	select {
	case data := <-conn.send:
		msg, err := FromJSON(data)
		if err != nil {
			t.Fatalf("invalid frame on send channel: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func TestHubChannelRouting(t *testing.T) {
	hub := startHub(t, 100)

	conn1 := newTestConnection(hub, "user1")
	conn2 := newTestConnection(hub, "user2")
	conn3 := newTestConnection(hub, "user3")

	hub.register <- conn1
	hub.register <- conn2
	hub.register <- conn3
	waitForStats(t, hub, func(s HubStats) bool { return s.ActiveConnections == 3 })

	hub.Subscribe(conn1, "activity")
	hub.Subscribe(conn2, "activity")
	hub.Subscribe(conn3, "alerts")
	waitForStats(t, hub, func(s HubStats) bool { return s.ActiveChannels == 2 })

	msg, err := NewMessage(MessageTypeActivity, map[string]string{"id": "a1", "title": "deploy"})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	hub.Broadcast("activity", msg)

	got1 := receiveFrame(t, conn1)
	got2 := receiveFrame(t, conn2)
	if got1.Type != MessageTypeActivity || got2.Type != MessageTypeActivity {
		t.Errorf("unexpected frame types: %s, %s", got1.Type, got2.Type)
	}

	// conn3 subscribed to a different channel and must receive nothing
	select {
	case data := <-conn3.send:
		t.Errorf("conn3 received unexpected frame: %s", data)
	case <-time.After(100 * time.Millisecond):
	}

	waitForStats(t, hub, func(s HubStats) bool { return s.TotalMessagesSent == 2 })
}

func TestHubBroadcastNoSubscribers(t *testing.T) {
	hub := startHub(t, 100)

	msg, _ := NewMessage(MessageTypeActivity, map[string]string{"id": "a1"})
	hub.Broadcast("empty-channel", msg)

	waitForStats(t, hub, func(s HubStats) bool { return s.TotalMessagesReceived == 1 })
	if stats := hub.GetStats(); stats.TotalMessagesSent != 0 {
		t.Errorf("expected 0 sent, got %d", stats.TotalMessagesSent)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := startHub(t, 100)

	conn := newTestConnection(hub, "user1")
	hub.register <- conn
	waitForStats(t, hub, func(s HubStats) bool { return s.ActiveConnections == 1 })

	hub.Subscribe(conn, "activity")
	waitForStats(t, hub, func(s HubStats) bool { return s.ActiveChannels == 1 })

	hub.Unsubscribe(conn, "activity")
	waitForStats(t, hub, func(s HubStats) bool { return s.ActiveChannels == 0 })

	msg, _ := NewMessage(MessageTypeActivity, map[string]string{"id": "a1"})
	hub.Broadcast("activity", msg)
	select {
	case data := <-conn.send:
		t.Errorf("unsubscribed connection received frame: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubUnregisterCleansSubscriptions(t *testing.T) {
	hub := startHub(t, 100)

	conn := newTestConnection(hub, "user1")
	hub.register <- conn
	waitForStats(t, hub, func(s HubStats) bool { return s.ActiveConnections == 1 })

	hub.Subscribe(conn, "activity")
	hub.Subscribe(conn, "alerts")
	waitForStats(t, hub, func(s HubStats) bool { return s.ActiveChannels == 2 })

	hub.unregister <- conn
	waitForStats(t, hub, func(s HubStats) bool {
		return s.ActiveConnections == 0 && s.ActiveChannels == 0
	})

	// The hub closed the send channel on unregister
	select {
	case _, ok := <-conn.send:
		if ok {
			t.Error("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed")
	}
}

// capturingLogger records warn messages for assertions
type capturingLogger struct {
	testLogger
	mu    sync.Mutex
	warns []string
}

func (l *capturingLogger) Warnf(ctx context.Context, template string, arg ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(template, arg...))
}

func (l *capturingLogger) warned(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.warns {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestHubMaxConnections(t *testing.T) {
	logger := &capturingLogger{}
	hub := NewHub(logger, 1)
	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hub.Shutdown(ctx)
	})

	conn1 := newTestConnection(hub, "user1")
	conn2 := newTestConnection(hub, "user2")

	hub.register <- conn1
	waitForStats(t, hub, func(s HubStats) bool { return s.ActiveConnections == 1 })

	hub.register <- conn2
	// conn2 is rejected and closed
	select {
	case <-conn2.done:
	case <-time.After(2 * time.Second):
		t.Fatal("over-capacity connection was not closed")
	}
	if stats := hub.GetStats(); stats.ActiveConnections != 1 {
		t.Errorf("expected 1 active connection, got %d", stats.ActiveConnections)
	}
	if !logger.warned(ErrMaxConnections.Error()) {
		t.Error("rejection was not reported with ErrMaxConnections")
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := startHub(t, 100)

	// A connection with a full send buffer
	conn := newTestConnection(hub, "slow")
	conn.send = make(chan []byte, 1)
	conn.send <- []byte("stuck")

	hub.register <- conn
	waitForStats(t, hub, func(s HubStats) bool { return s.ActiveConnections == 1 })
	hub.Subscribe(conn, "activity")
	waitForStats(t, hub, func(s HubStats) bool { return s.ActiveChannels == 1 })

	msg, _ := NewMessage(MessageTypeActivity, map[string]string{"id": "a1"})
	hub.Broadcast("activity", msg)

	waitForStats(t, hub, func(s HubStats) bool { return s.TotalMessagesFailed == 1 })
}

func TestMessageRoundtrip(t *testing.T) {
	payload := map[string]string{"id": "a1", "title": "deploy finished"}
	msg, err := NewMessage(MessageTypeAlert, payload)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	decoded, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if decoded.Type != MessageTypeAlert {
		t.Errorf("Type = %s, want %s", decoded.Type, MessageTypeAlert)
	}

	var got map[string]string
	if err := json.Unmarshal(decoded.Payload, &got); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}
	if got["id"] != "a1" {
		t.Errorf("payload id = %s, want a1", got["id"])
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"valid", Message{Type: MessageTypeActivity, Payload: []byte(`{}`)}, false},
		{"missing type", Message{Payload: []byte(`{}`)}, true},
		{"missing payload", Message{Type: MessageTypeActivity}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
