package statussurface

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// wireEvent is the JSON shape streamed to /events subscribers.
type wireEvent struct {
	Kind        string    `json:"kind"`
	Src         int       `json:"src,omitempty"`
	Dest        int       `json:"dest,omitempty"`
	SlotType    int       `json:"slot_type,omitempty"`
	Transmitted bool      `json:"transmitted,omitempty"`
	CycleLength int       `json:"cycle_length,omitempty"`
	SlotCount   int       `json:"slot_count,omitempty"`
	At          time.Time `json:"at"`
}

// hub fans out events to every connected websocket client. Each client
// has its own bounded outbound queue; a slow reader gets disconnected
// rather than stalling the broadcaster.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(e wireEvent) {
	payload, err := jsonAPI.Marshal(e)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow reader: disconnect rather than block the broadcaster
			// or let its backlog grow without bound.
			delete(h.clients, c)
			close(c.send)
			c.conn.Close()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Status surface is a same-origin operations endpoint, not a
	// public API; relaxed CheckOrigin matches other internal tooling.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Surface) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("status surface: websocket upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 32)}
	s.hub.register(c)
	go s.writePump(c)
	go s.readPump(c)
}

// readPump drains and discards client frames; it exists only to detect
// disconnects, since /events is a one-way feed.
func (s *Surface) readPump(c *client) {
	defer s.hub.unregister(c)
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Surface) writePump(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
