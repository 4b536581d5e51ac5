package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types sent over the socket
const (
	EventConnected    = "connected"
	EventNotification = "notification"
)

// Envelope is the frame written to clients
type Envelope struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"userID,omitempty"`
}

// Conn is the part of a websocket connection the hub writes to
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

const (
	// time allowed to write one frame to the peer
	defaultWriteWait = 10 * time.Second
	// frames queued per client before it counts as stalled
	sendBufferSize = 16
)

// Client is one authenticated connection. Frames go through send and are
// written by a single writer goroutine started on Register.
type Client struct {
	UserID    string
	conn      Conn
	send      chan interface{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps conn for userID
func NewClient(userID string, conn Conn) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan interface{}, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// enqueue hands v to the writer without blocking. It reports false when the
// queue is full or the client is gone.
func (c *Client) enqueue(v interface{}) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- v:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) writePump(h *Hub) {
	for {
		select {
		case <-c.done:
			return
		case v := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteJSON(v); err != nil {
				h.logger.Debug("websocket write failed",
					zap.String("userId", c.UserID),
					zap.Error(err))
				h.Unregister(c)
				return
			}
		}
	}
}

// Hub tracks the live connection of every signed-in user. A newer connection
// for the same user replaces the older one.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
	writeWait  time.Duration
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		writeWait:  defaultWriteWait,
	}
}

// Run starts the hub's event loop; it returns after Close
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			old, ok := h.clients[client.UserID]
			if ok && old == client {
				h.mu.Unlock()
				continue
			}
			if ok {
				old.close()
			}
			h.clients[client.UserID] = client
			h.mu.Unlock()
			go client.writePump(h)
		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.UserID]; ok && current == client {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()
			client.close()
		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds client once Run is processing
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes client and closes its connection
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Close stops Run and closes every connection
func (h *Hub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Connected reports whether userID has a live connection
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SendToUser queues payload for the user's connection and never blocks.
// Offline users are skipped; the notification is already persisted and
// pushed. A client whose queue is full is disconnected.
func (h *Hub) SendToUser(userID string, payload interface{}) {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if !client.enqueue(Envelope{Type: EventNotification, Data: payload, UserID: userID}) {
		h.logger.Warn("websocket client stalled, disconnecting",
			zap.String("userId", userID))
		go h.Unregister(client)
	}
}
