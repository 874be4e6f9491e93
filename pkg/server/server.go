// Package server wires the collaborative editing core together: a TCP
// listener accepting client connections, one reader goroutine per
// connection feeding a shared request queue, and a single dispatcher
// goroutine that serializes every mutation and broadcasts its effect to
// all connected clients. The single dispatcher is what makes the
// document rebase in internal/model sufficient: every client observes
// every response in the same global order.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"gopad/internal/session"
)

// Config represents the server configuration.
type Config struct {
	// Port is the TCP port the line-protocol listener binds.
	Port int
	// WSPort enables the WebSocket bridge on the given HTTP port when
	// non-zero. Browser clients speak the same wire protocol there.
	WSPort int
	// Palette overrides the user color palette; nil keeps the default.
	Palette []session.Color
	// QueueSize bounds the shared request queue; zero keeps the default.
	QueueSize int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:      4444,
		QueueSize: 256,
	}
}

// request is one raw wire line tagged with the connection it arrived on.
type request struct {
	connID int
	line   string
}

// Server hosts the documents and maintains connections with clients.
type Server struct {
	config   Config
	registry *session.Registry
	queue    chan request
	logger   *zap.Logger

	listener net.Listener
	ws       *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewServer creates a server from the given configuration. Serve must be
// called to start accepting connections.
func NewServer(config Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:   config,
		registry: session.NewRegistry(config.Palette, logger),
		queue:    make(chan request, config.QueueSize),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry exposes the session registry, mainly for tests.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Addr returns the address the TCP listener is bound to, or nil before
// Serve has started listening.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen binds the TCP listener without accepting yet. Serve calls it
// implicitly; tests call it directly to learn the ephemeral port.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Port, err)
	}
	s.listener = ln
	s.logger.Info("Listening for requests", zap.String("addr", ln.Addr().String()))
	return nil
}

// Serve runs the server: the dispatcher, the optional WebSocket bridge and
// the accept loop. It never returns unless the main listener breaks or
// Close is called; I/O errors on individual client connections do not
// terminate Serve.
func (s *Server) Serve() error {
	if err := s.Listen(); err != nil {
		return err
	}

	go s.dispatchLoop()

	if s.config.WSPort > 0 {
		go func() {
			if err := s.serveWS(); err != nil {
				s.logger.Error("WebSocket bridge stopped", zap.Error(err))
			}
		}()
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		id := s.registry.RegisterWriter(conn)
		// The handshake goes to the new connection only; everything
		// after this point is broadcast.
		s.registry.SendTo(id, handshake(id))

		go s.readLoop(conn, id)
	}
}

// readLoop reads framed lines from a single client connection and drains
// them into the shared queue. On EOF or a read error the connection and
// its user are deregistered; the error stays local to this connection.
func (s *Server) readLoop(conn net.Conn, connID int) {
	defer func() {
		s.registry.Disconnect(connID)
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	// Whole documents travel as single wire lines, so allow long ones.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case s.queue <- request{connID: connID, line: scanner.Text()}:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("Client read error",
			zap.Int("conn_id", connID),
			zap.Error(err))
	}
}

// dispatchLoop is the single serialization point. It dequeues requests one
// at a time, applies the mutation, and broadcasts the response to every
// writer in the same order for every client.
func (s *Server) dispatchLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.queue:
			response := s.handle(req)
			s.registry.Broadcast(response)
		}
	}
}

// Close shuts the server down: stops the accept loop, the dispatcher and
// the WebSocket bridge.
func (s *Server) Close() error {
	s.cancel()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.closeWS()
	return err
}
