// Package ws tracks the websocket leg toward each connected client.
package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client wraps one client connection. gorilla/websocket allows a single
// concurrent writer, so all writes go through the client's mutex: the stream
// handler's reader goroutine and the engine's playback timers both send
// frames.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

func NewHub() *Hub {
	return &Hub{conns: map[string]*Client{}}
}

func (h *Hub) Add(id string, c *Client) {
	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()
}

func (h *Hub) Get(id string) (*Client, bool) {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	return c, ok
}

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
