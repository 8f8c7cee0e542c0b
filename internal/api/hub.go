package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/walletsim/internal/brain"
	"github.com/wonny/walletsim/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 64
	broadcastQueue = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one websocket subscriber; runID filters events when set
type client struct {
	conn  *websocket.Conn
	send  chan brain.Event
	runID string
}

// ProgressHub fans run events out to websocket subscribers
// ⭐ SSOT: 진행률 푸시는 여기서만
type ProgressHub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	broadcast  chan brain.Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	logger     *logger.Logger
}

// NewProgressHub creates a hub; call Run to start dispatching
func NewProgressHub(log *logger.Logger) *ProgressHub {
	return &ProgressHub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan brain.Event, broadcastQueue),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     log.Component("progress_hub"),
	}
}

// Publish queues an event, dropping it when the queue is full
func (h *ProgressHub) Publish(e brain.Event) {
	select {
	case h.broadcast <- e:
	default:
		// 진행률은 최신 값만 의미 있음
	}
}

// Clients returns the number of connected subscribers
func (h *ProgressHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run processes registrations and broadcasts until ctx is done
func (h *ProgressHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case e := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.runID != "" && c.runID != e.RunID {
					continue
				}
				select {
				case c.send <- e:
				default:
					// 느린 클라이언트는 이벤트 누락
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ServeWS upgrades the request and streams events (GET /ws/progress?run_id=)
func (h *ProgressHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{
		conn:  conn,
		send:  make(chan brain.Event, clientBuffer),
		runID: r.URL.Query().Get("run_id"),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump drains client frames so pongs and close frames are processed
func (h *ProgressHub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ProgressHub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
