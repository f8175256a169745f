// Package web serves the dashboard's HTTP/WebSocket surface: library and
// status endpoints, a realtime socket fanning out bus events, and a
// command channel translating validated dashboard messages into
// internal bus events. Grounded on
// cantina_os/services/web_bridge_service.py's WebBridgeService, with
// its Socket.IO transport replaced by `gorilla/websocket` and its
// FastAPI app replaced by `gin-gonic/gin`, matching what SPEC_FULL.md §9
// specifies for this build.
package web

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one connected dashboard websocket session.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// hub tracks connected dashboard clients and fans outbound messages out
// to all of them, mirroring WebBridgeService's _dashboard_clients map
// and _broadcast_event_to_dashboard.
type hub struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	clients map[string]*client
}

func newHub(logger *zap.SugaredLogger) *hub {
	return &hub{logger: logger, clients: make(map[string]*client)}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *hub) unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if ok {
		close(c.send)
	}
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// sendTo delivers data to exactly one connected client, matching a
// command_ack/command_error's "only the originating client" addressing.
// Reports false if the client isn't connected or its send buffer is
// full, so the caller can log the drop.
func (h *hub) sendTo(id string, data []byte) bool {
	h.mu.Lock()
	c, ok := h.clients[id]
	h.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// broadcast sends data to every connected client, dropping it for a
// client whose send buffer is full rather than blocking the whole
// fan-out on one slow socket.
func (h *hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warnw("dropping broadcast for slow dashboard client", "client", id)
		}
	}
}

func (c *client) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.Close()
}

func (c *client) readPump(ctx context.Context, onMessage func(ctx context.Context, clientID string, data []byte)) {
	defer c.conn.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		onMessage(ctx, c.id, data)
	}
}
