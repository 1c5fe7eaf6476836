package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/techagentng/quizchat/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

type frame struct {
	Event string        `json:"event"`
	Args  []interface{} `json:"args"`
}

// Hub tracks websocket connections per user id. One user may hold
// several connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  zerolog.Logger
}

type Client struct {
	UserID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	once   sync.Once
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: map[string]map[*Client]struct{}{},
		logger:  logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Name() string { return "websocket" }

// Register adds conn for userID and starts its writer.
func (h *Hub) Register(userID string, conn *websocket.Conn) *Client {
	c := &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		hub:    h,
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()
	metrics.WebsocketClients.Inc()

	go c.writePump()
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			metrics.WebsocketClients.Dec()
		}
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	c.once.Do(func() { close(c.send) })
}

// Connected reports how many connections userID holds.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Deliver queues the event on every matching connection. A connection
// whose queue is full misses the frame.
func (h *Hub) Deliver(ctx context.Context, ev Event) error {
	data, err := json.Marshal(frame{Event: ev.Name, Args: ev.Args})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	push := func(c *Client) {
		select {
		case c.send <- data:
		default:
			metrics.WebsocketDropped.Inc()
			h.logger.Debug().Str("user_id", c.UserID).Str("event", ev.Name).Msg("client queue full, frame dropped")
		}
	}

	if len(ev.Recipients) == 0 {
		for _, set := range h.clients {
			for c := range set {
				push(c)
			}
		}
		return nil
	}
	for _, uid := range ev.Recipients {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for c := range h.clients[uid] {
			push(c)
		}
	}
	return nil
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}

// ReadPump blocks until the peer goes away. Inbound frames are discarded;
// the channel is server-to-client only.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug().Err(err).Str("user_id", c.UserID).Msg("websocket closed")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
