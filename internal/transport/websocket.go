// Package transport provides the two reference wire adapters spec 6 leaves
// external to the core server: a gorilla/websocket hub for browser/CLI
// clients, and a bare-bones gRPC service for clients that prefer protobuf
// framing without requiring a generated stub package.
package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// Envelope is the wire shape of every message a client receives (spec 6's
// event names): Type is one of the stable event names, Payload is whatever
// that event carries.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub fans events and per-viewer state out to connected WebSocket clients,
// keyed by player ID (spec 6 "realtime transport to clients").
type Hub struct {
	log      slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*client // playerID -> client
}

type client struct {
	conn *websocket.Conn
	send chan Envelope
	done chan struct{}
}

// NewHub builds a Hub. allowedOrigin may be "*" for local development.
func NewHub(log slog.Logger, allowedOrigin string) *Hub {
	return &Hub{
		log:   log,
		conns: map[string]*client{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return allowedOrigin == "*" || r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// ServeHTTP upgrades the connection and registers it under playerID, read
// from a query parameter the way a thin client would identify itself before
// any session-specific auth has happened.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "missing playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("transport: upgrade failed for %s: %v", playerID, err)
		return
	}

	c := &client{conn: conn, send: make(chan Envelope, sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	if old, ok := h.conns[playerID]; ok {
		// Closing the socket ends the old readPump, whose remove closes done.
		old.conn.Close()
	}
	h.conns[playerID] = c
	h.mu.Unlock()

	go h.writePump(playerID, c)
	go h.readPump(playerID, c)
}

func (h *Hub) writePump(playerID string, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				h.log.Debugf("transport: write to %s failed: %v", playerID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only needs to notice disconnects: it keeps the read deadline
// fresh on each pong and discards every inbound message, so player actions
// sent over this socket are not routed anywhere by this package.
func (h *Hub) readPump(playerID string, c *client) {
	defer h.remove(playerID, c)
	c.conn.SetReadDeadline(time.Now().Add(pingPeriod + writeWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pingPeriod + writeWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(playerID string, c *client) {
	h.mu.Lock()
	if h.conns[playerID] == c {
		delete(h.conns, playerID)
	}
	h.mu.Unlock()
	close(c.done)
}

func (h *Hub) sendTo(playerID string, env Envelope) {
	h.mu.RLock()
	c, ok := h.conns[playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.send <- env:
	default:
		h.log.Warnf("transport: send buffer full for %s, dropping %s", playerID, env.Type)
	}
}

// BroadcastEvent implements registry.Broadcaster: every event is sent to
// every currently connected client (the per-viewer SessionView that follows
// immediately after is where masking actually happens).
func (h *Hub) BroadcastEvent(gameID string, ev engine.Event) {
	env := Envelope{Type: ev.Type, Payload: ev.Data}
	h.mu.RLock()
	targets := make([]string, 0, len(h.conns))
	for id := range h.conns {
		targets = append(targets, id)
	}
	h.mu.RUnlock()
	for _, id := range targets {
		h.sendTo(id, env)
	}
}

// SendView implements registry.Broadcaster: the masked per-viewer state,
// spec 6's "gameState" event.
func (h *Hub) SendView(gameID, viewerID string, view session.SessionView) {
	h.sendTo(viewerID, Envelope{Type: "gameState", Payload: view})
}
