// Package dashboard streams live search progress to websocket clients.
package dashboard

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"formula-lab/internal/search"
)

// Message types
const (
	MsgTypeStatus   = "status"
	MsgTypeProgress = "progress"
	MsgTypeResult   = "result"
)

const writeWait = 5 * time.Second

// Message is one websocket payload.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	Time int64  `json:"time"` // Unix milliseconds
}

// Hub fans messages out to connected websocket clients.
// All writes to a connection happen on the Run goroutine.
type Hub struct {
	upgrader   websocket.Upgrader
	broadcast  chan Message
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	logger     *zap.Logger

	done       chan struct{} // closed when Run returns

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
	last    *Message // latest progress, replayed to new clients
	now     func() time.Time
}

// NewHub creates a hub. Call Run to start delivering messages.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		broadcast:  make(chan Message, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
		clients:    make(map[*websocket.Conn]struct{}),
		now:        time.Now,
	}
}

// Run delivers messages until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.RLock()
			last := h.last
			h.mu.RUnlock()

			ok := h.write(c, Message{Type: MsgTypeStatus, Data: map[string]string{"status": "connected"}, Time: h.now().UnixMilli()})
			if ok && last != nil {
				ok = h.write(c, *last)
			}
			if !ok {
				c.Close()
				continue
			}
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			if msg.Type == MsgTypeProgress {
				h.mu.Lock()
				h.last = &msg
				h.mu.Unlock()
			}

			h.mu.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				if !h.write(c, msg) {
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) write(c *websocket.Conn, msg Message) bool {
	_ = c.SetWriteDeadline(h.now().Add(writeWait))
	if err := c.WriteJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
		return false
	}
	return true
}

func (h *Hub) drop(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.Close()
	}
}

// ServeHTTP upgrades the request and keeps the connection until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	// Drain client frames; a read error means the client is gone.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues a message for all clients. Drops it when the queue is full.
func (h *Hub) Publish(msgType string, data any) {
	msg := Message{Type: msgType, Data: data, Time: h.now().UnixMilli()}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Debug("dashboard queue full, dropping message", zap.String("type", msgType))
	}
}

// PublishProgress is a search.ProgressFunc.
func (h *Hub) PublishProgress(p search.Progress) {
	h.Publish(MsgTypeProgress, p)
}

// Clients returns the number of registered connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
