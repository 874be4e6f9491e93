package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsWriter adapts a WebSocket connection to the io.Writer the registry
// broadcasts to. A broadcast may carry several newline-separated wire
// lines in one write; each becomes its own text message so WebSocket
// clients never have to re-frame. gorilla connections do not allow
// concurrent writes, so writes are serialized here as well as by the
// registry mutex.
type wsWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if err := w.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// serveWS runs the WebSocket bridge: an HTTP endpoint at /ws that speaks
// the identical line protocol over text messages, so browser clients join
// the same document space as TCP clients.
func (s *Server) serveWS() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	s.ws = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.WSPort),
		Handler: mux,
	}

	s.logger.Info("WebSocket bridge listening", zap.Int("port", s.config.WSPort))
	if err := s.ws.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("websocket bridge failed: %w", err)
	}
	return nil
}

// closeWS shuts the bridge down if it is running.
func (s *Server) closeWS() {
	if s.ws == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ws.Shutdown(ctx); err != nil {
		s.logger.Warn("WebSocket bridge shutdown error", zap.Error(err))
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWS upgrades the HTTP request and runs the connection exactly like
// a TCP one: register a writer, send the id handshake to that connection
// only, then drain inbound lines into the shared queue until the socket
// breaks.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	id := s.registry.RegisterWriter(&wsWriter{conn: conn})
	s.registry.SendTo(id, handshake(id))

	defer func() {
		s.registry.Disconnect(id)
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("WebSocket read error",
					zap.Int("conn_id", id),
					zap.Error(err))
			}
			return
		}

		// A message may carry several newline-separated request lines.
		for _, line := range strings.Split(strings.TrimRight(string(payload), "\n"), "\n") {
			if line == "" {
				continue
			}
			select {
			case s.queue <- request{connID: id, line: line}:
			case <-s.ctx.Done():
				return
			}
		}
	}
}
