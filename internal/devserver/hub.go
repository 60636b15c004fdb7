// ABOUTME: Websocket hub broadcasting realtime events to connected clients
// ABOUTME: Each client has a buffered send queue drained by its own writer goroutine

package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 5 * time.Second
	sendQueueLen = 64
)

type hubClient struct {
	conn    *websocket.Conn
	send    chan []byte
	tokenID string
	once    sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub tracks websocket clients
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*hubClient]struct{}{},
	}
}

// Serve upgrades the request and blocks until the client goes away
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, claims *Claims) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, sendQueueLen), tokenID: claims.ID}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Info("Realtime client connected", "user", claims.Username, "clients", h.Count())

	go h.writeLoop(c)

	// reads only detect the peer going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
	slog.Info("Realtime client disconnected", "user", claims.Username)
}

func (h *Hub) writeLoop(c *hubClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			slog.Debug("Realtime write failed", "error", err)
			h.remove(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Broadcast queues ev for every client and returns how many received it.
// A client whose queue is full is dropped.
func (h *Hub) Broadcast(ev models.Event) int {
	frame, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to encode realtime event", "event", ev.Name, "error", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		select {
		case c.send <- frame:
			n++
		default:
			slog.Warn("Dropping slow realtime client")
			delete(h.clients, c)
			c.close()
		}
	}
	slog.Debug("Realtime event broadcast", "event", ev.Name, "clients", n)
	return n
}

// Disconnect closes every connection opened with the token identified by tokenID
func (h *Hub) Disconnect(tokenID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.tokenID == tokenID {
			delete(h.clients, c)
			c.close()
		}
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
