package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans simulation events out to them.
// Messages that do not fit a client's buffer are dropped and counted per
// message type.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	dropped map[string]int
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		dropped: make(map[string]int),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Send wraps payload in an envelope of the given type and broadcasts it.
func (h *Hub) Send(msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		log.Printf("Error marshaling %s: %v", msgType, err)
		return
	}
	h.Broadcast(msgType, msg)
}

// SendTo delivers one envelope to a single registered client. It reports
// false when the client is gone or its buffer is full.
func (h *Hub) SendTo(c *Client, msgType string, payload any) bool {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		log.Printf("Error marshaling %s: %v", msgType, err)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return false
	}
	return h.deliver(c, msgType, msg)
}

// Broadcast sends an encoded message of type msgType to all clients.
func (h *Hub) Broadcast(msgType string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.deliver(c, msgType, msg)
	}
}

// deliver must be called with mu held.
func (h *Hub) deliver(c *Client, msgType string, msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		h.dropped[msgType]++
		log.Printf("client buffer full, dropping %s message (%d dropped)", msgType, h.dropped[msgType])
		return false
	}
}

// Dropped returns how many messages of msgType were skipped because a
// client could not keep up.
func (h *Hub) Dropped(msgType string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped[msgType]
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
