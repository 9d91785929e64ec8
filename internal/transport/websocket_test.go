package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/session"
)

func dialHub(t *testing.T, hub *Hub, playerID string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?playerId=" + playerID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastEventReachesAllConnections(t *testing.T) {
	hub := NewHub(slog.Disabled, "*")
	connA := dialHub(t, hub, "alice")
	connB := dialHub(t, hub, "bob")

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.conns) == 2
	}, time.Second, 5*time.Millisecond)

	hub.BroadcastEvent("g1", engine.Event{Type: "hand_started", Data: map[string]interface{}{"handNumber": float64(1)}})

	var envA, envB Envelope
	require.NoError(t, connA.ReadJSON(&envA))
	require.NoError(t, connB.ReadJSON(&envB))
	require.Equal(t, "hand_started", envA.Type)
	require.Equal(t, "hand_started", envB.Type)
}

func TestHubSendViewTargetsOneViewer(t *testing.T) {
	hub := NewHub(slog.Disabled, "*")
	connA := dialHub(t, hub, "alice")
	_ = dialHub(t, hub, "bob")

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.conns) == 2
	}, time.Second, 5*time.Millisecond)

	hub.SendView("g1", "alice", session.SessionView{GameID: "g1"})

	var env Envelope
	require.NoError(t, connA.ReadJSON(&env))
	require.Equal(t, "gameState", env.Type)
}

func TestHubReplacesExistingConnectionForSamePlayer(t *testing.T) {
	hub := NewHub(slog.Disabled, "*")
	first := dialHub(t, hub, "alice")
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.conns) == 1
	}, time.Second, 5*time.Millisecond)

	_ = dialHub(t, hub, "alice")
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.conns) == 1
	}, time.Second, 5*time.Millisecond)

	_, _, err := first.ReadMessage()
	require.Error(t, err, "the replaced connection should have been closed")
}

func TestHubRejectsMissingPlayerID(t *testing.T) {
	hub := NewHub(slog.Disabled, "*")
	ts := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
