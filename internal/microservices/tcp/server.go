package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"cinecircle/internal/microservices/realtime"
	"cinecircle/internal/shared"
)

// TokenValidator turns the handshake token into the connection's identity.
type TokenValidator interface {
	ValidateToken(token string) (*shared.AuthClaims, error)
}

// TCPServer exposes the realtime router to line-oriented clients
// (CLI tools, bots) next to the websocket endpoint.
type TCPServer struct {
	addr       string
	router     *realtime.Router
	auth       TokenValidator
	sendBuffer int
	logger     *slog.Logger

	listener net.Listener
	// when closed, the accept loop stops and Stop tears the clients down
	quitChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	clients map[string]*ClientConnection
}

// constructor for Server
func NewServer(addr string, router *realtime.Router, auth TokenValidator, sendBuffer int, logger *slog.Logger) *TCPServer {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &TCPServer{
		addr:       addr,
		router:     router,
		auth:       auth,
		sendBuffer: sendBuffer,
		logger:     logger,
		quitChan:   make(chan struct{}),
		clients:    make(map[string]*ClientConnection),
	}
}

// Start listens on the configured address and serves until Stop.
func (s *TCPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on ln. It returns nil once Stop is called.
func (s *TCPServer) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("tcp_server_started", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quitChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("tcp_accept_failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}(conn)
	}
}

// Addr is the bound listener address, nil before Serve.
func (s *TCPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// handle the lifecycle of a single client connection
func (s *TCPServer) handleConnection(ctx context.Context, conn net.Conn) {
	client := NewClientConnection(conn, s)

	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.writeLoop()
	}()

	client.Listen(ctx)
	<-done

	s.mu.Lock()
	delete(s.clients, client.id)
	s.mu.Unlock()
}

// Stop closes the listener and every client socket, then waits for the
// connection goroutines to finish.
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.quitChan)

		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		for _, client := range s.clients {
			client.conn.Close() // unblocks the reader; writeLoop follows
		}
		s.mu.Unlock()

		s.wg.Wait()
		s.logger.Info("tcp_server_stopped")
	})
}
