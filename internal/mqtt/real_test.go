package mqtt

import (
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// doneToken is a completed paho token.
type doneToken struct {
	paho.Token
}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

// recordingClient records publishes. Methods not overridden panic via the
// nil embedded interface, so a test fails loudly if the publisher uses them.
type recordingClient struct {
	paho.Client

	mu        sync.Mutex
	sent      []string
	open      bool
	onPublish func(payload string)
}

func (c *recordingClient) Publish(_ string, _ byte, _ bool, payload interface{}) paho.Token {
	s := string(payload.([]byte))
	c.mu.Lock()
	c.sent = append(c.sent, s)
	hook := c.onPublish
	c.mu.Unlock()
	if hook != nil {
		hook(s)
	}
	return doneToken{}
}

func (c *recordingClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *recordingClient) Disconnect(uint) {}

func (c *recordingClient) published() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func newTestPublisher(c paho.Client) *RealPublisher {
	return &RealPublisher{client: c, topic: Topic, outbox: newOutbox(outboxCapacity)}
}

func publishRaw(t *testing.T, p *RealPublisher, payload string) {
	t.Helper()
	if err := p.publish(message{topic: Topic, payload: []byte(payload), qos: 1}); err != nil {
		t.Fatalf("publish %q: %v", payload, err)
	}
}

func queued(p *RealPublisher) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

func TestPublishQueuesUntilConnected(t *testing.T) {
	c := &recordingClient{}
	p := newTestPublisher(c)

	publishRaw(t, p, "a")
	publishRaw(t, p, "b")
	if got := c.published(); len(got) != 0 {
		t.Fatalf("sent while offline: %v", got)
	}

	p.onConnect(c)

	got := c.published()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("replay: got %v, want [a b]", got)
	}
	if n := queued(p); n != 0 {
		t.Errorf("outbox should be empty after replay, has %d", n)
	}
}

func TestPublishAfterConnectIsSent(t *testing.T) {
	// paho can report the connection closed while the connect handler has
	// already run; the publish must still go out rather than sit in the
	// outbox with nothing left to replay it.
	c := &recordingClient{open: false}
	p := newTestPublisher(c)
	p.onConnect(c)

	publishRaw(t, p, "live")

	got := c.published()
	if len(got) != 1 || got[0] != "live" {
		t.Errorf("got %v, want [live]", got)
	}
	if n := queued(p); n != 0 {
		t.Errorf("message stranded in outbox (%d queued)", n)
	}
}

func TestPublishDuringReplayKeepsOrder(t *testing.T) {
	c := &recordingClient{}
	p := newTestPublisher(c)

	publishRaw(t, p, "click")
	publishRaw(t, p, "short")

	// A live publish arriving while the first queued message is in flight.
	var once sync.Once
	c.onPublish = func(payload string) {
		if payload == "click" {
			once.Do(func() { publishRaw(t, p, "next") })
		}
	}

	p.onConnect(c)

	got := c.published()
	want := []string{"click", "short", "next"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: got %q, want %q (order %v)", i, got[i], want[i], got)
		}
	}
	if n := queued(p); n != 0 {
		t.Errorf("outbox should be empty, has %d", n)
	}
}

func TestPublishQueuesAfterConnectionLost(t *testing.T) {
	c := &recordingClient{}
	p := newTestPublisher(c)
	p.onConnect(c)

	p.onConnectionLost(c, nil)
	publishRaw(t, p, "offline")

	if got := c.published(); len(got) != 0 {
		t.Fatalf("sent after connection lost: %v", got)
	}
	if n := queued(p); n != 1 {
		t.Fatalf("expected 1 queued, got %d", n)
	}

	p.onConnect(c)
	if got := c.published(); len(got) != 1 || got[0] != "offline" {
		t.Errorf("reconnect replay: got %v", got)
	}
}

func TestConnectionLostDuringReplayStaysOffline(t *testing.T) {
	c := &recordingClient{}
	p := newTestPublisher(c)
	publishRaw(t, p, "a")

	c.onPublish = func(string) { p.onConnectionLost(c, nil) }
	p.onConnect(c)
	c.onPublish = nil

	publishRaw(t, p, "b")
	if got := c.published(); len(got) != 1 {
		t.Fatalf("sent after loss mid-replay: %v", got)
	}

	p.onConnect(c)
	if got := c.published(); len(got) != 2 || got[1] != "b" {
		t.Errorf("reconnect replay: got %v", got)
	}
}

func TestReconnectDuringReplayFinishesDrain(t *testing.T) {
	c := &recordingClient{}
	p := newTestPublisher(c)
	publishRaw(t, p, "a")

	var once sync.Once
	c.onPublish = func(string) {
		once.Do(func() {
			p.onConnectionLost(c, nil)
			publishRaw(t, p, "late")
			p.onConnect(c)
		})
	}
	p.onConnect(c)

	publishRaw(t, p, "live")

	got := c.published()
	want := []string{"a", "late", "live"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPublishConcurrentWithConnectLosesNothing(t *testing.T) {
	c := &recordingClient{}
	p := newTestPublisher(c)

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			p.publish(message{topic: Topic, payload: []byte{byte(i)}, qos: 1})
		}
	}()
	go func() {
		defer wg.Done()
		p.onConnect(c)
	}()
	wg.Wait()

	got := c.published()
	if len(got) != n {
		t.Fatalf("sent %d of %d messages (%d left queued)", len(got), n, queued(p))
	}
	for i, s := range got {
		if s[0] != byte(i) {
			t.Fatalf("message %d out of order: got %d", i, s[0])
		}
	}
}

func TestCloseDisconnects(t *testing.T) {
	c := &recordingClient{}
	p := newTestPublisher(c)
	publishRaw(t, p, "dropped")

	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
