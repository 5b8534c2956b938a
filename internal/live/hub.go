// Package live pushes spin outcomes to connected websocket clients.
package live

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types.
const (
	EventSpin    = "SPIN_RESULT"
	EventJackpot = "JACKPOT"
	EventRotate  = "SEED_ROTATED"
	EventPong    = "PONG"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Event is one message on the feed. An event with a Player goes only to that
// player's connections; otherwise it is broadcast.
type Event struct {
	Type      string    `json:"type"`
	Player    string    `json:"player,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type inbound struct {
	Type string `json:"type"`
}

type client struct {
	player string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks connections. Slow clients are dropped instead of blocking
// publishers.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin.
func NewHub(logger *log.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   logger,
	}
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues ev for every matching client.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Printf("live_marshal_failed type=%s err=%v", ev.Type, err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if ev.Player != "" && c.player != ev.Player {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Printf("live_client_dropped player=%s reason=slow", c.player)
		h.remove(c)
	}
}

// ServeWS upgrades the request and streams player's events until the
// connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, player string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("live_upgrade_failed player=%s err=%v", player, err)
		return
	}
	c := &client{player: player, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Printf("live_client_registered player=%s", player)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.logger.Printf("live_client_unregistered player=%s", c.player)
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Printf("live_read_error player=%s err=%v", c.player, err)
			}
			return
		}
		if msg.Type == "PING" {
			h.Publish(Event{Type: EventPong, Player: c.player})
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
