package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
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

// recordingSink counts OnItem calls and remembers the items it saw
type recordingSink struct {
	mu    sync.Mutex
	items []ActivityItem
}

func (s *recordingSink) OnItem(_ context.Context, item *ActivityItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, *item)
	return nil
}

func (s *recordingSink) seen() []ActivityItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityItem, len(s.items))
	copy(out, s.items)
	return out
}

// testHub is a minimal in-process feed hub: it upgrades, captures the
// subscribe command, then relays frames pushed through the frames channel.
type testHub struct {
	srv        *httptest.Server
	frames     chan []byte
	subscribes chan SubscribeCommand
	dials      atomic.Int32

	// dropFirst closes the first n connections right after subscribe
	dropFirst int32
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()

	h := &testHub{
		frames:     make(chan []byte, 64),
		subscribes: make(chan SubscribeCommand, 8),
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		dial := h.dials.Add(1)

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeCommand
		if err := json.Unmarshal(data, &sub); err != nil {
			t.Errorf("bad subscribe command: %v", err)
			return
		}
		h.subscribes <- sub

		if dial <= h.dropFirst {
			return
		}

		// Drain client reads in the background so control frames are
		// handled, and notice when the peer goes away.
		connClosed := make(chan struct{})
		go func() {
			defer close(connClosed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case frame := <-h.frames:
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			case <-connClosed:
				return
			}
		}
	}))
	t.Cleanup(h.srv.Close)

	return h
}

func (h *testHub) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func (h *testHub) send(t *testing.T, frame string) {
	t.Helper()
	select {
	case h.frames <- []byte(frame):
	case <-time.After(time.Second):
		t.Fatal("timed out queueing frame")
	}
}

func activityFrame(id, typ, severity, title, description string) string {
	payload := map[string]any{
		"id":          id,
		"type":        typ,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"title":       title,
		"description": description,
	}
	if severity != "" {
		payload["severity"] = severity
	}
	frame, _ := json.Marshal(map[string]any{"type": "activity", "payload": payload})
	return string(frame)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	client, err := NewClient(cfg, &testLogger{})
	require.NoError(t, err)
	require.NoError(t, client.Start(context.Background()))
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientSubscribeAndIngest(t *testing.T) {
	hub := newTestHub(t)
	client := startClient(t, Config{URL: hub.url(), Channel: "cad-activity"})

	select {
	case sub := <-hub.subscribes:
		require.Equal(t, "subscribe", sub.Type)
		require.Equal(t, "cad-activity", sub.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe command received")
	}

	hub.send(t, activityFrame("1", "user", "", "login", "user signed in"))
	hub.send(t, activityFrame("2", "system", "", "deploy", "rollout done"))
	hub.send(t, `{"type":"alert","payload":{"id":"3","severity":"error","timestamp":"2026-08-30T10:00:00Z","title":"disk full"}}`)

	waitFor(t, "3 buffered items", func() bool { return client.Buffer().Len() == 3 })

	items := client.Buffer().Items()
	require.Equal(t, []string{"3", "2", "1"}, []string{items[0].ID, items[1].ID, items[2].ID})
	require.Equal(t, ActivityTypeAlert, items[0].Type, "alert payload must be tagged as alert")
	require.True(t, client.Connected())
	require.Equal(t, 3, client.Buffer().UnreadCount())
}

func TestClientDefaultChannel(t *testing.T) {
	hub := newTestHub(t)
	startClient(t, Config{URL: hub.url()})

	select {
	case sub := <-hub.subscribes:
		require.Equal(t, "activity", sub.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe command received")
	}
}

func TestClientTolerantOfBadFrames(t *testing.T) {
	hub := newTestHub(t)
	client := startClient(t, Config{URL: hub.url()})
	<-hub.subscribes

	hub.send(t, `this is not json`)
	hub.send(t, `{"type":"presence","payload":{"users":4}}`)
	hub.send(t, `{"type":"activity","payload":{"id":"bad","type":"audit","title":"nope"}}`)
	hub.send(t, activityFrame("good", "event", "", "survived", ""))

	// The connection must survive malformed, unknown, and invalid frames
	waitFor(t, "valid item after bad frames", func() bool { return client.Buffer().Len() == 1 })
	require.Equal(t, "good", client.Buffer().Items()[0].ID)
	require.True(t, client.Connected())
}

func TestClientSeverityGatedNotifications(t *testing.T) {
	hub := newTestHub(t)
	alerts := &recordingSink{}
	cues := &recordingSink{}
	client := startClient(t, Config{
		URL:                 hub.url(),
		EnableNotifications: true,
		EnableSound:         true,
		AlertSink:           alerts,
		CueSink:             cues,
	})
	<-hub.subscribes

	hub.send(t, activityFrame("c1", "alert", "critical", "api outage", "all regions"))
	hub.send(t, activityFrame("i1", "metric", "info", "cpu normal", ""))
	hub.send(t, activityFrame("w1", "alert", "warning", "latency rising", ""))

	waitFor(t, "3 buffered items", func() bool { return client.Buffer().Len() == 3 })

	// Exactly one notification, referencing the critical item
	seen := alerts.seen()
	require.Len(t, seen, 1)
	require.Equal(t, "api outage", seen[0].Title)
	require.Equal(t, "all regions", seen[0].Description)

	// The cue fires for every accepted item
	require.Len(t, cues.seen(), 3)
}

func TestClientNotificationsDisabled(t *testing.T) {
	hub := newTestHub(t)
	alerts := &recordingSink{}
	client := startClient(t, Config{
		URL:       hub.url(),
		AlertSink: alerts,
	})
	<-hub.subscribes

	hub.send(t, activityFrame("c1", "alert", "critical", "api outage", ""))
	waitFor(t, "buffered item", func() bool { return client.Buffer().Len() == 1 })

	require.Empty(t, alerts.seen(), "disabled notifications must not fire the alert sink")
}

func TestClientPauseGate(t *testing.T) {
	hub := newTestHub(t)
	alerts := &recordingSink{}
	var onItemCalls atomic.Int32
	client := startClient(t, Config{
		URL:                 hub.url(),
		EnableNotifications: true,
		AlertSink:           alerts,
		OnItem:              func(ActivityItem) { onItemCalls.Add(1) },
	})
	<-hub.subscribes

	hub.send(t, activityFrame("warm", "event", "", "before pause", ""))
	waitFor(t, "pre-pause item", func() bool { return client.Buffer().Len() == 1 })

	client.Buffer().SetPaused(true)
	for i := 0; i < 5; i++ {
		hub.send(t, activityFrame("p", "alert", "critical", "dropped", ""))
	}
	hub.send(t, activityFrame("marker", "event", "", "still paused", ""))

	// Wait until the marker frame has definitely been processed: the hub
	// delivers in order, so once the channel drains and a grace period
	// passes, all paused frames went through the gate.
	waitFor(t, "frames drained", func() bool { return len(hub.frames) == 0 })
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, 1, client.Buffer().Len(), "paused items must not be buffered")
	require.Empty(t, alerts.seen(), "paused items must not fire side effects")
	require.Equal(t, int32(1), onItemCalls.Load())

	client.Buffer().SetPaused(false)
	hub.send(t, activityFrame("resumed", "event", "", "after resume", ""))
	waitFor(t, "post-resume item", func() bool { return client.Buffer().Len() == 2 })
	require.Equal(t, "resumed", client.Buffer().Items()[0].ID)
}

func TestClientClickMarksReadFirst(t *testing.T) {
	hub := newTestHub(t)
	var clicked ActivityItem
	clickDone := make(chan struct{})
	client := startClient(t, Config{
		URL: hub.url(),
		OnItemClick: func(item ActivityItem) {
			clicked = item
			close(clickDone)
		},
	})
	<-hub.subscribes

	hub.send(t, activityFrame("x", "user", "", "clickable", ""))
	waitFor(t, "buffered item", func() bool { return client.Buffer().Len() == 1 })

	require.True(t, client.Click("x"))
	<-clickDone
	require.True(t, clicked.Read, "item must be marked read before the click callback runs")
	require.False(t, client.Click("missing"))
}

func TestClientNoReconnectByDefault(t *testing.T) {
	hub := newTestHub(t)
	hub.dropFirst = 1
	client := startClient(t, Config{URL: hub.url()})
	<-hub.subscribes

	select {
	case <-client.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("client did not stop after the connection dropped")
	}
	require.False(t, client.Connected())
	require.Equal(t, int32(1), hub.dials.Load())
}

func TestClientReconnectPolicy(t *testing.T) {
	hub := newTestHub(t)
	hub.dropFirst = 1
	client := startClient(t, Config{
		URL: hub.url(),
		Reconnect: ReconnectPolicy{
			Enabled:      true,
			InitialDelay: 20 * time.Millisecond,
			MaxDelay:     100 * time.Millisecond,
			Multiplier:   2,
		},
	})

	// First session is dropped by the hub, the second one delivers
	<-hub.subscribes
	<-hub.subscribes
	hub.send(t, activityFrame("after-reconnect", "event", "", "back", ""))

	waitFor(t, "item after reconnect", func() bool { return client.Buffer().Len() == 1 })
	require.True(t, hub.dials.Load() >= 2)
	require.True(t, client.Connected())
}

func TestClientClose(t *testing.T) {
	hub := newTestHub(t)
	client := startClient(t, Config{URL: hub.url()})
	<-hub.subscribes

	require.NoError(t, client.Close())
	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after Close")
	}
	require.False(t, client.Connected())
	require.NoError(t, client.Close(), "Close must be idempotent")
}
