package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/internal/model"
)

func attachServer(t *testing.T, hub *Hub, userID string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Attach(r.Context(), userID, conn)
	}))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var wire struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &wire))
	return wire.Type, wire.Data
}

func TestHubDeliversToOwnerOnly(t *testing.T) {
	hub := NewHub()
	srvAlice := attachServer(t, hub, "alice")
	defer srvAlice.Close()
	srvBob := attachServer(t, hub, "bob")
	defer srvBob.Close()

	alice := dial(t, srvAlice)
	defer alice.Close()
	bob := dial(t, srvBob)
	defer bob.Close()

	// Attach runs async in the handler goroutine; wait for registration.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.conns["alice"]) == 1 && len(hub.conns["bob"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.PublishProgress("alice", "doc-1", 60, "embedding")

	eventType, data := readEvent(t, alice)
	require.Equal(t, model.EventProcessingUpdate, eventType)
	require.Equal(t, "doc-1", data["documentId"])
	require.Equal(t, float64(60), data["progress"])

	// Bob gets nothing.
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	require.Error(t, err)
}

func TestHubTerminalEvents(t *testing.T) {
	hub := NewHub()
	srv := attachServer(t, hub, "u1")
	defer srv.Close()
	conn := dial(t, srv)
	defer conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.conns["u1"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.PublishReady("u1", "doc-1", "a.pdf")
	eventType, data := readEvent(t, conn)
	require.Equal(t, model.EventEmbeddingsReady, eventType)
	require.Equal(t, "a.pdf", data["filename"])

	hub.PublishFailed("u1", "doc-2", "quota exceeded")
	eventType, data = readEvent(t, conn)
	require.Equal(t, model.EventEmbeddingsFailed, eventType)
	require.Equal(t, "quota exceeded", data["error"])
}

func TestHubDropsClosedConnections(t *testing.T) {
	hub := NewHub()
	srv := attachServer(t, hub, "u1")
	defer srv.Close()
	conn := dial(t, srv)

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.conns["u1"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.conns["u1"]) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Publishing to a user with no connections is a no-op.
	hub.PublishProgress("u1", "doc-1", 10, "")
}
