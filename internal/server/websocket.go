package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Events buffered per client before it is dropped as too slow
	clientBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The feed is read-only and carries no credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one websocket subscriber.
type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
	device string // empty for all devices
}

// Hub fans device events out to websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub returns a hub with no clients.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run broadcasts events until ctx is done or events is closed.
func (h *Hub) Run(ctx context.Context, events <-chan device.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(e)
		}
	}
}

// Broadcast sends e to every client subscribed to its device. Clients that
// cannot keep up are disconnected.
func (h *Hub) Broadcast(e device.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logging.Error("Failed to marshal event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.device != "" && c.device != e.Device {
			continue
		}
		select {
		case c.send <- data:
		default:
			logging.Warn("Dropping slow websocket client", zap.String("remote_addr", c.remote))
			h.removeLocked(c)
		}
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// handleWebSocket upgrades GET /api/ws. The optional ?device= query limits
// the feed to one device. Each client first receives the current state of
// every device it follows.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("device")
	if filter != "" {
		if _, ok := s.devices.Get(filter); !ok {
			writeError(w, http.StatusNotFound, "unknown device "+filter)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	logging.LogConnection("", r.RemoteAddr, "websocket_upgraded")

	c := &client{conn: conn, remote: r.RemoteAddr, send: make(chan []byte, clientBuffer), device: filter}
	for _, sum := range s.devices.Summaries() {
		if filter != "" && sum.Name != filter {
			continue
		}
		sup, _ := s.devices.Get(sum.Name)
		data, err := json.Marshal(device.Event{
			Device: sum.Name,
			Kind:   device.EventState,
			Time:   time.Now(),
			State:  sum.State,
			Status: sup.Status(),
			Error:  sum.LastError,
		})
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
	s.hub.add(c)

	go c.writePump()
	c.readPump()
	s.hub.remove(c)
	logging.LogConnection("", r.RemoteAddr, "websocket_closed")
}

// readPump discards client messages and returns when the connection ends.
func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("WebSocket read error", zap.String("remote_addr", c.remote), zap.Error(err))
			}
			return
		}
		logging.LogWebSocketMessage(c.remote, "received", msgType, data)
	}
}

// writePump sends queued events and pings until send is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			logging.LogWebSocketMessage(c.remote, "sent", websocket.TextMessage, data)
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
