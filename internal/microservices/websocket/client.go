package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cinecircle/internal/microservices/realtime"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Individual browser tab connection; one Client per upgraded socket

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod     = (PongWait * 9) / 10 // send pings before pong wait expires
	MaxMessageSize = 16 * 1024           // maximum inbound frame size
	FrameTimeout   = 10 * time.Second    // max time spent handling one inbound frame
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClientClosed   = errors.New("client closed")
)

type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte // outbound frames, drained by WritePump
	router  *realtime.Router
	session *realtime.Session
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, router *realtime.Router, bufferSize int, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, bufferSize),
		router: router,
		logger: logger,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues a frame without blocking. A slow reader gets ErrSendBufferFull
// and the frame is dropped for this connection only.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump, which sends a close frame and tears the socket down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// ReadPump feeds inbound frames to the router in arrival order until the
// socket fails, then closes the session.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.router.Close(c.session)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("ws_read_error", "connection_id", c.id, "error", err)
			}
			return
		}

		frameCtx, cancel := context.WithTimeout(ctx, FrameTimeout)
		c.router.Handle(frameCtx, c.session, data)
		cancel()
	}
}

// WritePump is the only writer on the socket. Each queued frame goes out as
// its own text message.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("ws_write_failed", "connection_id", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
