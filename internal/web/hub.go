package web

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sweeney/buttond/internal/logic"
	"github.com/sweeney/buttond/internal/mqtt"
)

// clientBuffer is how many messages a slow client may lag behind before
// further gestures are dropped for it.
const clientBuffer = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type client struct {
	send chan []byte
}

// Hub fans gesture events out to connected websocket clients. Each message
// is the same JSON payload that is published over MQTT.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Broadcast queues event for every client without blocking. A client whose
// buffer is full misses the event.
func (h *Hub) Broadcast(event logic.Event) {
	payload, err := mqtt.FormatPayload(event)
	if err != nil {
		log.Printf("web: format event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			log.Printf("web: client buffer full, dropping %s", event.Gesture)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) register() *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	c := &client{send: make(chan []byte, clientBuffer)}
	h.clients[c] = struct{}{}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeHTTP upgrades the request to a websocket and streams events until
// the client goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Printf("web: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	c := h.register()
	if c == nil {
		return
	}
	defer h.unregister(c)

	// Clients only listen. Reading is still needed to notice a close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unregister(c)
				return
			}
		}
	}()

	for msg := range c.send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("web: websocket write: %v", err)
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
