package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/buttond/internal/logic"
	"github.com/sweeney/buttond/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *Hub) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Chip:          "gpiochip0",
		Pins:          []int{17, 27},
		PollMs:        10,
		DebounceMs:    30,
		DoubleClickMs: 500,
		LongPressMs:   1000,
		HeartbeatMs:   900000,
		Broker:        "tcp://192.168.1.200:1883",
		HTTPPort:      ":80",
	}
	tr := status.NewTracker(start, cfg)
	hub := NewHub()
	srv := New(":0", tr, hub)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return ts, tr, hub
}

func testButtons(state0, state1 logic.State) []status.ButtonStatus {
	return []status.ButtonStatus{
		{Index: 0, Pin: 17, State: state0, Counts: logic.EventCounts{Clicks: 5, ShortReleases: 4}},
		{Index: 1, Pin: 27, State: state1, Counts: logic.EventCounts{Clicks: 2, LongReleases: 2}},
	}
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(testButtons(logic.StateDown, logic.StateUp), true, logic.EventCounts{Clicks: 7, ShortReleases: 4, LongReleases: 2}, 0)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if len(sj.Status.Buttons) != 2 {
		t.Fatalf("Buttons: got %d, want 2", len(sj.Status.Buttons))
	}
	if sj.Status.Buttons[0].State != "DOWN" {
		t.Errorf("button 0: got %q, want DOWN", sj.Status.Buttons[0].State)
	}
	if sj.Status.Buttons[1].State != "UP" {
		t.Errorf("button 1: got %q, want UP", sj.Status.Buttons[1].State)
	}
	if !sj.Status.Running {
		t.Error("expected Running=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.Clicks != 7 {
		t.Errorf("Counts.Clicks: got %d, want 7", sj.Status.Counts.Clicks)
	}
	if sj.Status.Counts.LongReleases != 2 {
		t.Errorf("Counts.LongReleases: got %d, want 2", sj.Status.Counts.LongReleases)
	}
	if sj.Status.Config.PollMs != 10 {
		t.Errorf("Config.PollMs: got %d, want 10", sj.Status.Config.PollMs)
	}
	if len(sj.Status.Config.Pins) != 2 || sj.Status.Config.Pins[1] != 27 {
		t.Errorf("Config.Pins: got %v", sj.Status.Config.Pins)
	}
}

func TestJSONBeforeFirstUpdate(t *testing.T) {
	ts, _, _ := newTestServer(t)

	sj := getStatus(t, ts.URL)

	if sj.Status.Running {
		t.Error("expected Running=false before first update")
	}
	if len(sj.Status.Buttons) != 0 {
		t.Errorf("expected no buttons before first update, got %d", len(sj.Status.Buttons))
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getStatus(t, ts.URL)

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(testButtons(logic.StateDown, logic.StateUp), true, logic.EventCounts{}, 3)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	if !strings.Contains(page, `id="state-0" class="down">DOWN`) {
		t.Error("expected button 0 rendered as DOWN")
	}
	if !strings.Contains(page, `id="state-1" class="up">UP`) {
		t.Error("expected button 1 rendered as UP")
	}
	if !strings.Contains(page, "/ws") {
		t.Error("expected page to open the live feed")
	}
}

func TestHTMLEndpointNoButtons(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "no buttons bound") {
		t.Error("expected empty button table placeholder")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	tr.Update(testButtons(logic.StateUp, logic.StateUp), true, logic.EventCounts{}, 0)
	sj1 := getStatus(t, ts.URL)
	if sj1.Status.Buttons[0].State != "UP" {
		t.Errorf("button 0: got %q, want UP", sj1.Status.Buttons[0].State)
	}

	tr.Update(testButtons(logic.StateDown, logic.StateUp), true, logic.EventCounts{Clicks: 1}, 1)
	tr.SetMQTTConnected(true)

	sj2 := getStatus(t, ts.URL)
	if sj2.Status.Buttons[0].State != "DOWN" {
		t.Errorf("button 0: got %q, want DOWN", sj2.Status.Buttons[0].State)
	}
	if sj2.Status.ReadErrors != 1 {
		t.Errorf("ReadErrors: got %d, want 1", sj2.Status.ReadErrors)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

func TestWebsocketRejectsPlainHTTP(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("GET /ws: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
