package api

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HendryAvila/esp32-copilot/internal/workflow"
)

const (
	wsSendBuffer   = 64
	wsReadLimit    = 4 * 1024
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
)

// Hub fans workflow events out to connected websocket clients. It
// implements workflow.Observer.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[int64]*wsClient
	nextID  atomic.Int64
}

// NewHub creates a hub. checkOrigin decides which browser origins may
// connect; nil allows any.
func NewHub(checkOrigin func(origin string) bool) *Hub {
	h := &Hub{clients: make(map[int64]*wsClient)}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || checkOrigin == nil {
				return true
			}
			return checkOrigin(origin)
		},
	}
	return h
}

// OnEvent queues ev for every client. Slow clients drop messages rather
// than block the workflow.
func (h *Hub) OnEvent(ev workflow.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.send(ev)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[int64]*wsClient)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// ServeHTTP upgrades the request and blocks until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARNING: websocket upgrade: %v", err)
		return
	}

	c := &wsClient{
		id:     h.nextID.Add(1),
		conn:   conn,
		sendCh: make(chan any, wsSendBuffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go c.writePump()
	c.send(map[string]any{"type": "hello", "at": time.Now().UTC().Format(time.RFC3339)})

	c.readPump()

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
}

// ─── Client ──────────────────────────────────────────────────────────────────

type wsClient struct {
	id     int64
	conn   *websocket.Conn
	sendCh chan any
	done   chan struct{}
	once   sync.Once
}

func (c *wsClient) send(msg any) {
	select {
	case <-c.done:
	case c.sendCh <- msg:
	default:
		log.Printf("WARNING: websocket client %d: send buffer full, dropping event", c.id)
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump discards inbound messages; it exists to notice disconnects
// and answer pings.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(wsReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARNING: websocket client %d: %v", c.id, err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
