package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// sendBufferSize is the number of queued events before a client counts as slow
	sendBufferSize = 256
)

// Client is one push-only connection of an owner. Events are queued by the
// hub and written by Serve in the order they were queued.
type Client struct {
	id      string
	ownerID string
	conn    *websocket.Conn

	mu     sync.Mutex
	queue  chan []byte
	closed bool
	done   chan struct{}
}

// NewClient wraps an upgraded connection for ownerID
func NewClient(conn *websocket.Conn, ownerID string) *Client {
	return &Client{
		id:      uuid.New().String(),
		ownerID: ownerID,
		conn:    conn,
		queue:   make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }
func (c *Client) OwnerID() string { return c.ownerID }

// Send queues data without blocking. A full queue means the peer stopped
// reading; the caller is expected to drop the client.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.queue <- data:
		return nil
	default:
		return ErrSlowClient
	}
}

// Close stops Serve and releases the connection. It may be called more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	return c.conn.Close()
}

// Serve registers the client on hub and blocks until the peer goes away or
// the client is closed. Inbound frames other than control frames are discarded.
func (c *Client) Serve(hub *Hub) {
	hub.Register(c)
	defer func() {
		hub.Unregister(c)
		_ = c.Close()
	}()

	go c.writeLoop()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).
					Str("client_id", c.id).
					Str("owner_id", c.ownerID).
					Msg("WebSocket closed unexpectedly")
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return

		case data := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).
					Str("client_id", c.id).
					Str("owner_id", c.ownerID).
					Msg("WebSocket write failed")
				_ = c.Close()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
