package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/internal/model"
)

func eventServer(t *testing.T, push []model.Event) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tok", r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		// Wait for the client's go-ahead so watchers are registered
		// before any event is pushed.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for _, event := range push {
			require.NoError(t, conn.WriteJSON(event))
		}
		// Keep the socket open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	return httptest.NewServer(mux)
}

func TestBridgeDemuxesByDocument(t *testing.T) {
	srv := eventServer(t, []model.Event{
		{Type: model.EventProcessingUpdate, Data: model.ProcessingUpdate{DocumentID: "doc-1", Progress: 40, Message: "chunking"}},
		{Type: model.EventProcessingUpdate, Data: model.ProcessingUpdate{DocumentID: "doc-2", Progress: 10}},
		{Type: model.EventEmbeddingsReady, Data: model.EmbeddingsReady{DocumentID: "doc-1", Filename: "a.pdf"}},
		{Type: model.EventEmbeddingsFailed, Data: model.EmbeddingsFailed{DocumentID: "doc-2", Error: "quota exceeded"}},
	})
	defer srv.Close()

	bridge, err := DialBridge(context.Background(), srv.URL, "tok")
	require.NoError(t, err)
	defer bridge.Close()

	ch1 := bridge.Watch("doc-1")
	ch2 := bridge.Watch("doc-2")
	require.NoError(t, bridge.conn.WriteMessage(websocket.TextMessage, []byte("ready")))

	first := recvEvent(t, ch1)
	require.Equal(t, model.EventProcessingUpdate, first.Type)
	require.Equal(t, 40, first.Progress)
	require.Equal(t, "chunking", first.Message)

	ready := recvEvent(t, ch1)
	require.Equal(t, model.EventEmbeddingsReady, ready.Type)
	require.True(t, ready.Terminal())
	require.Equal(t, "a.pdf", ready.Filename)

	update := recvEvent(t, ch2)
	require.Equal(t, 10, update.Progress)

	failed := recvEvent(t, ch2)
	require.Equal(t, model.EventEmbeddingsFailed, failed.Type)
	require.True(t, failed.Terminal())
	require.Equal(t, "quota exceeded", failed.Err)
}

func TestBridgeCloseShutsDownWatchers(t *testing.T) {
	srv := eventServer(t, nil)
	defer srv.Close()

	bridge, err := DialBridge(context.Background(), srv.URL, "tok")
	require.NoError(t, err)

	ch := bridge.Watch("doc-1")
	bridge.Close()

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watcher channel not closed")
	}
	select {
	case <-bridge.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed")
	}

	// Watching after shutdown yields an already-closed channel.
	late := bridge.Watch("doc-2")
	_, ok := <-late
	require.False(t, ok)
}

func TestBridgeIgnoresUnknownEvents(t *testing.T) {
	srv := eventServer(t, []model.Event{
		{Type: "unrelated-event", Data: map[string]string{"foo": "bar"}},
		{Type: model.EventEmbeddingsReady, Data: model.EmbeddingsReady{DocumentID: "doc-1"}},
	})
	defer srv.Close()

	bridge, err := DialBridge(context.Background(), srv.URL, "tok")
	require.NoError(t, err)
	defer bridge.Close()

	ch := bridge.Watch("doc-1")
	require.NoError(t, bridge.conn.WriteMessage(websocket.TextMessage, []byte("ready")))
	event := recvEvent(t, ch)
	require.Equal(t, model.EventEmbeddingsReady, event.Type)
}

func recvEvent(t *testing.T, ch <-chan DocumentEvent) DocumentEvent {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok)
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return DocumentEvent{}
	}
}
