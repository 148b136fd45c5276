package client

// tcp_client.go = line-delimited JSON client for the realtime TCP transport.

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"cinecircle/internal/shared"

	"github.com/google/uuid"
)

// TCPClient is an authenticated realtime session over TCP
type TCPClient struct {
	serverAddr string
	conn       net.Conn
	reader     *bufio.Reader
	userID     string
	mu         sync.Mutex // serializes writes
}

// NewTCPClient creates a new TCP client
func NewTCPClient(serverAddr string) *TCPClient {
	return &TCPClient{serverAddr: serverAddr}
}

// Connect dials the server and performs the auth handshake. The server
// answers with an ack carrying the claims it resolved from the token.
func (c *TCPClient) Connect(token string) error {
	conn, err := net.DialTimeout("tcp", c.serverAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)

	ack := uuid.NewString()
	if err := c.Send(shared.EventAuth, ack, map[string]string{"token": token}); err != nil {
		conn.Close()
		return fmt.Errorf("authentication failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	env, err := c.Next()
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		conn.Close()
		return fmt.Errorf("authentication response failed: %w", err)
	}
	if env.Type != shared.EventAck {
		conn.Close()
		return fmt.Errorf("authentication rejected: %s", string(env.Data))
	}

	var claims shared.AuthClaims
	if err := json.Unmarshal(env.Data, &claims); err != nil {
		conn.Close()
		return fmt.Errorf("unexpected auth response: %w", err)
	}
	c.userID = claims.UserID
	return nil
}

// UserID is the identity the server resolved during the handshake
func (c *TCPClient) UserID() string {
	return c.userID
}

// Register sends addUser so the server starts delivering to this connection
func (c *TCPClient) Register() error {
	return c.Send(shared.EventAddUser, "", c.userID)
}

// Send writes one envelope followed by a newline
func (c *TCPClient) Send(event shared.EventType, ack string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(shared.Envelope{Type: event, Data: raw, Ack: ack})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.conn.Write(append(frame, '\n'))
	return err
}

// Next blocks until the next envelope arrives
func (c *TCPClient) Next() (*shared.Envelope, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return shared.DecodeEnvelope(line)
}

// Disconnect closes the connection; the server announces userOffline if
// this was the user's last connection.
func (c *TCPClient) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
