package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/restrack/restrack-ai/internal/analytics"
	"github.com/restrack/restrack-ai/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames and small subscription messages.
	maxMessageSize = 4096
)

// defaultOrigins are allowed when no origins are configured.
var defaultOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// WSMessage is the envelope of every message pushed to clients.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains active WebSocket connections and broadcasts run summaries.
// It implements analytics.Publisher.
type Hub struct {
	// Registered clients; only the Run goroutine mutates the map.
	clients map[*wsClient]bool

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	mu  sync.RWMutex
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	runMu   sync.Mutex
	running bool
	done    chan struct{}
}

// NewHub creates a new WebSocket hub. Call Run to start it.
func NewHub(ctx context.Context) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		log:        zap.NewNop(),
		ctx:        hubCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// SetLogger replaces the hub's logger.
func (h *Hub) SetLogger(log *zap.Logger) {
	if log != nil {
		h.log = log
	}
}

// Run dispatches registrations and broadcasts until the hub is stopped.
func (h *Hub) Run() {
	h.runMu.Lock()
	if h.running {
		h.runMu.Unlock()
		return
	}
	h.running = true
	h.runMu.Unlock()
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.remove(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				h.remove(c)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Client buffer full, drop it
					h.log.Warn("Dropping slow websocket client", zap.String("client_id", c.id))
					h.remove(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *wsClient) {
	delete(h.clients, c)
	close(c.send)
	metrics.WebSocketConnections.Dec()
}

// Stop stops the hub and closes every client.
func (h *Hub) Stop() {
	h.cancel()
	h.runMu.Lock()
	running := h.running
	h.runMu.Unlock()
	if running {
		<-h.done
	}
}

// Publish broadcasts a completed run. It never blocks the caller: when the
// broadcast queue is full the message is dropped.
func (h *Hub) Publish(ev analytics.RunEvent) {
	data, err := json.Marshal(WSMessage{Type: ev.Type, Data: ev, Timestamp: time.Now().UTC()})
	if err != nil {
		h.log.Error("Failed to encode run event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.log.Warn("Websocket broadcast queue full, dropping run event", zap.String("run_id", ev.RunID))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ─── Client ──────────────────────────────────────────────────────────────────

type wsClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// handleWebSocket upgrades GET /ws/analysis and streams run summaries.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	up := newUpgrader(s.config.AllowedOrigins)
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{
		id:   uuid.NewString(),
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 32),
	}
	select {
	case s.hub.register <- c:
	case <-s.hub.ctx.Done():
		_ = conn.Close()
		return
	}
	s.log.Debug("WebSocket client connected", zap.String("client_id", c.id))

	go c.writePump()
	go c.readPump()
}

// readPump drains client frames so that pongs and close frames are handled.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		metrics.WebSocketMessagesTotal.WithLabelValues("inbound").Inc()
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			metrics.WebSocketMessagesTotal.WithLabelValues("outbound").Inc()

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ─── Origins ─────────────────────────────────────────────────────────────────

// newUpgrader returns an upgrader that accepts requests without an Origin
// header, any origin when allowed contains "*", and otherwise only the
// listed origins (case-insensitive). Empty allowed means defaultOrigins.
func newUpgrader(allowed []string) websocket.Upgrader {
	origins := corsOrigins(allowed)
	wildcard := false
	set := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
		set[strings.ToLower(o)] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || wildcard {
				return true
			}
			return set[strings.ToLower(origin)]
		},
	}
}

func corsOrigins(allowed []string) []string {
	if len(allowed) == 0 {
		return defaultOrigins
	}
	return allowed
}
