package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/model"
)

// DocumentEvent is one decoded server push about a single document.
type DocumentEvent struct {
	Type     string
	Progress int
	Message  string
	Err      string
	Filename string
}

// Terminal reports whether the document reached a final processing state.
func (e DocumentEvent) Terminal() bool {
	return e.Type == model.EventEmbeddingsReady || e.Type == model.EventEmbeddingsFailed
}

// Bridge holds one WebSocket subscription per pipeline run and fans
// incoming events out by document id. An event for a document with no
// watcher is dropped, so consumers pair each Watch with a direct status
// check covering the window before the watch existed.
type Bridge struct {
	conn *websocket.Conn

	mu       sync.Mutex
	watchers map[string]chan DocumentEvent
	closed   bool
	done     chan struct{}
}

const watchBuffer = 16

// DialBridge opens the events socket. The token rides in a query
// parameter because browser WebSocket clients cannot set headers, and the
// server accepts it there for this endpoint.
func DialBridge(ctx context.Context, baseURL, token string) (*Bridge, error) {
	wsURL := strings.TrimRight(baseURL, "/")
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/api/v1/events?token=" + token

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial events socket: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	b := &Bridge{
		conn:     conn,
		watchers: make(map[string]chan DocumentEvent),
		done:     make(chan struct{}),
	}
	go b.readLoop(ctx)
	return b, nil
}

// Watch returns the event stream for one document. The channel closes
// when the bridge shuts down.
func (b *Bridge) Watch(documentID string) <-chan DocumentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.watchers[documentID]; ok {
		return ch
	}
	ch := make(chan DocumentEvent, watchBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[documentID] = ch
	return ch
}

// Unwatch drops the subscription for a finished document.
func (b *Bridge) Unwatch(documentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.watchers[documentID]; ok {
		delete(b.watchers, documentID)
		close(ch)
	}
}

// Done is closed when the underlying socket goes away.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

func (b *Bridge) Close() {
	b.shutdown()
}

func (b *Bridge) shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, ch := range b.watchers {
		delete(b.watchers, id)
		close(ch)
	}
	b.mu.Unlock()
	close(b.done)
	b.conn.Close()
}

func (b *Bridge) readLoop(ctx context.Context) {
	defer b.shutdown()
	for {
		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logutil.GetLogger(ctx).Warn("events socket closed", zap.Error(err))
			}
			return
		}
		var wire struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			logutil.GetLogger(ctx).Warn("undecodable event", zap.Error(err))
			continue
		}
		docID, event := decodeEvent(wire.Type, wire.Data)
		if docID == "" {
			continue
		}
		b.dispatch(docID, event)
	}
}

func (b *Bridge) dispatch(docID string, event DocumentEvent) {
	b.mu.Lock()
	ch, ok := b.watchers[docID]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- event:
	default:
		// Watcher is stalled; dropping a progress tick is harmless and
		// the terminal state can still be fetched via GET /documents/:id.
	}
}

func decodeEvent(eventType string, data json.RawMessage) (string, DocumentEvent) {
	switch eventType {
	case model.EventProcessingUpdate:
		var payload model.ProcessingUpdate
		if err := json.Unmarshal(data, &payload); err != nil {
			return "", DocumentEvent{}
		}
		return payload.DocumentID, DocumentEvent{
			Type:     eventType,
			Progress: payload.Progress,
			Message:  payload.Message,
		}
	case model.EventEmbeddingsReady:
		var payload model.EmbeddingsReady
		if err := json.Unmarshal(data, &payload); err != nil {
			return "", DocumentEvent{}
		}
		return payload.DocumentID, DocumentEvent{
			Type:     eventType,
			Filename: payload.Filename,
		}
	case model.EventEmbeddingsFailed:
		var payload model.EmbeddingsFailed
		if err := json.Unmarshal(data, &payload); err != nil {
			return "", DocumentEvent{}
		}
		return payload.DocumentID, DocumentEvent{
			Type: eventType,
			Err:  payload.Error,
		}
	default:
		return "", DocumentEvent{}
	}
}
