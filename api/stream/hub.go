package stream

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/chargesim/core/logger"
	"github.com/kilianp07/chargesim/core/simulation"
)

// TypeSnapshot is sent once to every new client with the saved simulations.
const TypeSnapshot = "simulations:snapshot"

// Envelope is the frame sent to chart clients.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data under the given message type.
func NewEnvelope(msgType string, data any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and broadcasts simulation events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	log     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{clients: make(map[*Client]bool), log: logger.OrNop(log)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// RegisterWith adds c and queues the message built by first as its opening
// frame. The hub lock is held while first runs, so every broadcast is either
// reflected in that message or delivered after it. The client is registered
// even when first fails.
func (h *Hub) RegisterWith(c *Client, first func() ([]byte, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if first != nil {
		var msg []byte
		if msg, err = first(); err == nil {
			c.send <- msg
		}
	}
	h.clients[c] = true
	return err
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast sends a message to all connected clients. Slow clients whose
// buffer is full miss the message.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warnf("client buffer full, dropping message")
		}
	}
}

// BroadcastEvent forwards a simulation lifecycle event.
func (h *Hub) BroadcastEvent(ev simulation.Event) error {
	msg, err := NewEnvelope(string(ev.Type), ev.Simulation)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}
