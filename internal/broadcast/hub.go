// Package broadcast fans cube events out to WebSocket clients as JSON.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// clientBuffer is the number of events queued per client before it is dropped.
	clientBuffer = 64
)

// Event types.
const (
	EventState  = "state"
	EventMove   = "move"
	EventSolved = "solved"
)

// Event is the JSON message sent to clients.
type Event struct {
	Type     string `json:"type"`
	Time     int64  `json:"ts_ms"`
	Facelets string `json:"facelets,omitempty"` // URFDLB notation
	Battery  *int   `json:"battery,omitempty"`
	Move     string `json:"move,omitempty"`
	Solved   bool   `json:"solved,omitempty"`
}

// StateEvent builds a state event.
func StateEvent(state types.CubeState, battery int, at time.Time) Event {
	e := Event{
		Type:     EventState,
		Time:     at.UnixMilli(),
		Facelets: state.Notation(),
		Solved:   state.IsSolved(),
	}
	if battery >= 0 {
		e.Battery = &battery
	}
	return e
}

// MoveEvent builds a move event.
func MoveEvent(m types.Move) Event {
	return Event{Type: EventMove, Time: m.Time.UnixMilli(), Move: m.Notation()}
}

// SolvedEvent builds a solved event.
func SolvedEvent(at time.Time) Event {
	return Event{Type: EventSolved, Time: at.UnixMilli(), Solved: true}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and publishes events to all of them.
// The most recent state event is replayed to each new client.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	clients   map[*client]struct{}
	lastState []byte
	closed    bool
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.lastState != nil {
		c.send <- h.lastState
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("client connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", n))

	go h.writePump(c)
	go h.readPump(c)
}

// Publish sends e to every client. Clients whose queue is full are dropped.
func (h *Hub) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if e.Type == EventState {
		h.lastState = data
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("client too slow, dropping")
			h.removeLocked(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
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
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
