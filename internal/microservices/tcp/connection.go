package tcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"cinecircle/internal/microservices/realtime"
	"cinecircle/internal/shared"

	"github.com/google/uuid"
)

// frames are newline-delimited JSON envelopes, same shape as the websocket transport

const MaxMessageSize = 1024 * 1024          // 1MB max message size
const MaxDeadlineDuration = 5 * time.Minute // 5min max read timeout duration

const (
	AuthTimeout  = 10 * time.Second // first frame must authenticate within this window
	WriteWait    = 10 * time.Second
	FrameTimeout = 10 * time.Second
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClientClosed   = errors.New("client closed")
	ErrAuthRequired   = errors.New("first frame must be an auth event")
)

type authPayload struct {
	Token string `json:"token"`
}

type ClientConnection struct {
	id      string // unique identifier = key in the server's map
	conn    net.Conn
	writer  *bufio.Writer
	send    chan []byte // outbound frames, drained by writeLoop
	server  *TCPServer
	session *realtime.Session

	mu     sync.Mutex
	closed bool
}

// constructor for Connection
func NewClientConnection(conn net.Conn, server *TCPServer) *ClientConnection {
	return &ClientConnection{
		id:     uuid.NewString(),
		conn:   conn,
		writer: bufio.NewWriter(conn),
		send:   make(chan []byte, server.sendBuffer),
		server: server,
	}
}

func (c *ClientConnection) ID() string {
	return c.id
}

// Send queues a frame without blocking; writeLoop puts it on the wire.
func (c *ClientConnection) Send(data []byte) error {
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

// Close stops the write loop after it drains what is queued.
func (c *ClientConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// writeLoop is the only writer on the socket: data + "\n", flushed once the
// queue runs dry.
func (c *ClientConnection) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
		if err := c.write(data); err != nil {
			c.server.logger.Debug("client_write_failed", "client_id", c.id, "error", err)
			return
		}
		if len(c.send) > 0 {
			continue
		}
		if err := c.writer.Flush(); err != nil {
			c.server.logger.Debug("client_flush_failed", "client_id", c.id, "error", err)
			return
		}
	}
}

func (c *ClientConnection) write(data []byte) error {
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := c.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Listen authenticates the connection from its first frame, then feeds every
// following line to the router in arrival order.
func (c *ClientConnection) Listen(ctx context.Context) {
	// writeLoop drains what is queued, then closes the socket
	defer c.Close()
	// a line longer than MaxMessageSize fails the scan instead of being buffered
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), MaxMessageSize)

	logger := c.server.logger
	logger.Info("client_started_listening",
		"client_id", c.id,
		"remote_addr", c.conn.RemoteAddr().String(),
	)

	claims, ack, err := c.authenticate(scanner)
	if err != nil {
		logger.Warn("client_auth_failed", "client_id", c.id, "error", err)
		if frame, encErr := shared.EncodeError(ack, shared.ErrorPayload{Code: "unauthorized", Message: err.Error()}); encErr == nil {
			c.Send(frame)
		}
		return
	}
	if frame, err := shared.EncodeAck(ack, claims); err == nil {
		c.Send(frame)
	}

	c.session = c.server.router.Open(c, claims)
	defer c.server.router.Close(c.session)

	// Set initial deadline for read operations
	c.conn.SetReadDeadline(time.Now().Add(MaxDeadlineDuration))

	for scanner.Scan() {
		// reset deadline on successful read
		c.conn.SetReadDeadline(time.Now().Add(MaxDeadlineDuration))

		line := trimFrame(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		frameCtx, cancel := context.WithTimeout(ctx, FrameTimeout)
		c.server.router.Handle(frameCtx, c.session, line)
		cancel()
	}

	err = scanner.Err()
	switch {
	case err == nil: // client disconnected
		logger.Info("client_disconnected", "client_id", c.id)
	case errors.Is(err, bufio.ErrTooLong):
		logger.Warn("message_too_large", "client_id", c.id, "max_size", MaxMessageSize)
		if frame, encErr := shared.EncodeError("", shared.ErrorPayload{Code: "frame_too_large", Message: err.Error()}); encErr == nil {
			c.Send(frame)
		}
	case isTimeout(err):
		logger.Warn("client_read_timeout", "client_id", c.id)
	case isClosedConnError(err):
		// expected during shutdown
	default:
		logger.Error("client_read_error", "client_id", c.id, "error", err)
	}
}

// authenticate reads the handshake frame {"type":"auth","data":{"token":"..."}}.
// The ack id of the frame is returned even on failure so the reply can carry it.
func (c *ClientConnection) authenticate(scanner *bufio.Scanner) (*shared.AuthClaims, string, error) {
	c.conn.SetReadDeadline(time.Now().Add(AuthTimeout))

	if !scanner.Scan() {
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		return nil, "", fmt.Errorf("read auth frame: %w", err)
	}
	env, err := shared.DecodeEnvelope(trimFrame(scanner.Bytes()))
	if err != nil {
		return nil, "", err
	}
	if env.Type != shared.EventAuth {
		return nil, env.Ack, ErrAuthRequired
	}

	var p authPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.Token == "" {
		return nil, env.Ack, fmt.Errorf("%w: missing token", ErrAuthRequired)
	}
	claims, err := c.server.auth.ValidateToken(p.Token)
	if err != nil {
		return nil, env.Ack, err
	}
	return claims, env.Ack, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func trimFrame(line []byte) []byte {
	return bytes.TrimSpace(line)
}

// On Linux: "use of closed network connection"
// On Windows: "connection was aborted" / "forcibly closed"
func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "closed network connection") ||
		strings.Contains(err.Error(), "connection was aborted") ||
		strings.Contains(err.Error(), "forcibly closed")
}
