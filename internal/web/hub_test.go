package web

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sweeney/buttond/internal/logic"
	"github.com/sweeney/buttond/internal/mqtt"
)

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitClients polls until the hub has n clients. Registration happens on
// the server goroutine after the handshake completes.
func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clients, have %d", n, hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func hubEvent(g logic.Gesture) logic.Event {
	return logic.Event{
		ID:        "e1",
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Button:    1,
		Pin:       27,
		Gesture:   g,
		State:     logic.StateDown,
	}
}

func TestHubBroadcastReachesClient(t *testing.T) {
	ts, _, hub := newTestServer(t)
	conn := dial(t, ts.URL)
	waitClients(t, hub, 1)

	hub.Broadcast(hubEvent(logic.GestureClick))
	hub.Broadcast(hubEvent(logic.GestureDoubleClick))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{"CLICK", "DOUBLE_CLICK"} {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if mt != websocket.TextMessage {
			t.Errorf("message type: got %d, want text", mt)
		}
		var p mqtt.Payload
		if err := json.Unmarshal(data, &p); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if p.Button.Event != want {
			t.Errorf("event: got %s, want %s", p.Button.Event, want)
		}
		if p.Button.Index != 1 || p.Button.Pin != 27 {
			t.Errorf("index/pin: got %d/%d", p.Button.Index, p.Button.Pin)
		}
	}
}

func TestHubBroadcastMatchesMQTTPayload(t *testing.T) {
	ts, _, hub := newTestServer(t)
	conn := dial(t, ts.URL)
	waitClients(t, hub, 1)

	event := hubEvent(logic.GestureLongRelease)
	hub.Broadcast(event)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want, _ := mqtt.FormatPayload(event)
	if string(data) != string(want) {
		t.Errorf("payload:\ngot:  %s\nwant: %s", data, want)
	}
}

func TestHubMultipleClients(t *testing.T) {
	ts, _, hub := newTestServer(t)
	a := dial(t, ts.URL)
	b := dial(t, ts.URL)
	waitClients(t, hub, 2)

	hub.Broadcast(hubEvent(logic.GestureShortRelease))

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Errorf("read: %v", err)
		}
	}
}

func TestHubClientDisconnectUnregisters(t *testing.T) {
	ts, _, hub := newTestServer(t)
	conn := dial(t, ts.URL)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)

	// Broadcasting with no clients is a no-op.
	hub.Broadcast(hubEvent(logic.GestureClick))
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	ts, _, hub := newTestServer(t)
	conn := dial(t, ts.URL)
	waitClients(t, hub, 1)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
	if hub.Clients() != 0 {
		t.Errorf("clients after Close: got %d, want 0", hub.Clients())
	}
}

func TestHubRefusesClientsAfterClose(t *testing.T) {
	hub := NewHub()
	hub.Close()

	if c := hub.register(); c != nil {
		t.Error("register should fail after Close")
	}
}

func TestHubDropsWhenClientBufferFull(t *testing.T) {
	hub := NewHub()
	c := hub.register()

	for i := 0; i < clientBuffer+10; i++ {
		hub.Broadcast(hubEvent(logic.GestureClick))
	}

	if len(c.send) != clientBuffer {
		t.Errorf("buffered: got %d, want %d", len(c.send), clientBuffer)
	}

	hub.unregister(c)
	hub.unregister(c)
	if hub.Clients() != 0 {
		t.Errorf("clients: got %d, want 0", hub.Clients())
	}
}
