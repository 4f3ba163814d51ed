package events

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/model"
)

const (
	sendQueueSize = 64
	writeTimeout  = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Hub fans document-processing events out to every socket a user holds
// open. Publishing never blocks: a connection that cannot drain its queue
// is dropped.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*client]struct{}
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan model.Event
	done   chan struct{}
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*client]struct{})}
}

// Attach takes ownership of an upgraded connection and pumps events to it
// until the peer goes away or the hub drops it.
func (h *Hub) Attach(ctx context.Context, userID string, conn *websocket.Conn) {
	cl := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan model.Event, sendQueueSize),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*client]struct{})
	}
	h.conns[userID][cl] = struct{}{}
	h.mu.Unlock()

	logutil.GetLogger(ctx).Info("event subscriber attached", zap.String("user_id", userID))
	go h.readLoop(cl)
	h.writeLoop(ctx, cl)
}

func (h *Hub) Publish(userID string, event model.Event) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.conns[userID]))
	for cl := range h.conns[userID] {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()
	for _, cl := range targets {
		select {
		case <-cl.done:
		case cl.send <- event:
		default:
			h.drop(cl)
		}
	}
}

func (h *Hub) PublishProgress(userID, documentID string, progress int, message string) {
	h.Publish(userID, model.Event{
		Type: model.EventProcessingUpdate,
		Data: model.ProcessingUpdate{DocumentID: documentID, Progress: progress, Message: message},
	})
}

func (h *Hub) PublishReady(userID, documentID, filename string) {
	h.Publish(userID, model.Event{
		Type: model.EventEmbeddingsReady,
		Data: model.EmbeddingsReady{DocumentID: documentID, Filename: filename},
	})
}

func (h *Hub) PublishFailed(userID, documentID, errMsg string) {
	h.Publish(userID, model.Event{
		Type: model.EventEmbeddingsFailed,
		Data: model.EmbeddingsFailed{DocumentID: documentID, Error: errMsg},
	})
}

func (h *Hub) drop(cl *client) {
	cl.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.conns[cl.userID]; ok {
			delete(set, cl)
			if len(set) == 0 {
				delete(h.conns, cl.userID)
			}
		}
		h.mu.Unlock()
		close(cl.done)
		_ = cl.conn.Close()
	})
}

// readLoop discards inbound frames; the socket is server-push only. It
// exists to notice peer close and to honor control frames.
func (h *Hub) readLoop(cl *client) {
	defer h.drop(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, cl *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer h.drop(cl)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cl.done:
			return
		case event := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
