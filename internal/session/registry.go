// Package session tracks who is connected to the server: online user
// names, the color assigned to each user, the binding of connection ids to
// users, the per-connection output writers broadcasts fan out to, and the
// documents hosted by the process.
//
// A single mutex covers all registry state. Mutations come from two
// places only: the dispatcher goroutine handling requests, and a reader
// goroutine deregistering its connection on EOF.
package session

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"gopad/internal/model"
)

// ErrUserOnline is returned by Login when the name is already taken.
var ErrUserOnline = errors.New("user already online")

// ErrDuplicateDocument is returned by AddDocument for an existing name.
var ErrDuplicateDocument = errors.New("document already exists")

type connWriter struct {
	id int
	w  io.Writer
}

// Registry is the process-wide session state.
type Registry struct {
	mu sync.Mutex

	palette []Color

	nextConnID int
	online     map[string]struct{}
	colors     map[string]Color
	connUser   map[int]string
	writers    []connWriter

	documents  []*model.Document
	docsByName map[string]*model.Document

	logger *zap.Logger
}

// NewRegistry creates an empty registry using the given color palette.
// A nil or empty palette falls back to DefaultPalette.
func NewRegistry(palette []Color, logger *zap.Logger) *Registry {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		palette:    palette,
		online:     make(map[string]struct{}),
		colors:     make(map[string]Color),
		connUser:   make(map[int]string),
		docsByName: make(map[string]*model.Document),
		logger:     logger,
	}
}

// RegisterWriter claims the next connection id for w and adds it to the
// broadcast set. Called from the accept loop before the handshake line is
// sent.
func (r *Registry) RegisterWriter(w io.Writer) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextConnID++
	id := r.nextConnID
	r.writers = append(r.writers, connWriter{id: id, w: w})

	r.logger.Debug("Connection registered", zap.Int("conn_id", id))
	return id
}

// Disconnect removes the connection's writer and force-logs-out its bound
// user, if any. Unlike Logout, the color mapping is forgotten: the socket
// is gone and nothing will be emitted. Returns the user that was bound to
// the connection, if any.
func (r *Registry) Disconnect(connID int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cw := range r.writers {
		if cw.id == connID {
			r.writers = append(r.writers[:i], r.writers[i+1:]...)
			break
		}
	}

	user, ok := r.connUser[connID]
	if ok {
		delete(r.online, user)
		delete(r.colors, user)
		delete(r.connUser, connID)
		r.logger.Info("Connection lost, user logged out",
			zap.Int("conn_id", connID),
			zap.String("user", user))
	} else {
		r.logger.Debug("Connection lost", zap.Int("conn_id", connID))
	}
	return user, ok
}

// Login adds name to the online set and binds it to connID. The color is
// assigned on first login and reused on subsequent logins, so a returning
// user keeps their color. Fails with ErrUserOnline if the name is taken.
func (r *Registry) Login(name string, connID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.online[name]; ok {
		return fmt.Errorf("login %q: %w", name, ErrUserOnline)
	}

	if _, ok := r.colors[name]; !ok {
		r.colors[name] = r.palette[len(r.online)%len(r.palette)]
	}
	r.online[name] = struct{}{}
	r.connUser[connID] = name

	r.logger.Info("User logged in",
		zap.String("user", name),
		zap.Int("conn_id", connID),
		zap.String("color", r.colors[name].String()))
	return nil
}

// Logout removes name from the online set and unbinds the connection. The
// color mapping is retained so the same user returning gets the same
// color.
func (r *Registry) Logout(name string, connID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.online, name)
	delete(r.connUser, connID)

	r.logger.Info("User logged out",
		zap.String("user", name),
		zap.Int("conn_id", connID))
}

// Color returns the color assigned to name.
func (r *Registry) Color(name string) (Color, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.colors[name]
	return c, ok
}

// OnlineUsers returns the names currently logged in.
func (r *Registry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, 0, len(r.online))
	for name := range r.online {
		users = append(users, name)
	}
	return users
}

// BoundConns returns the number of connections with a logged-in user.
func (r *Registry) BoundConns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connUser)
}

// AddDocument appends doc to the hosted set, enforcing name uniqueness.
func (r *Registry) AddDocument(doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docsByName[doc.Name()]; ok {
		return fmt.Errorf("add document %q: %w", doc.Name(), ErrDuplicateDocument)
	}
	r.documents = append(r.documents, doc)
	r.docsByName[doc.Name()] = doc

	r.logger.Info("Document created",
		zap.String("doc", doc.Name()),
		zap.String("creator", doc.Creator()))
	return nil
}

// Document looks a document up by name.
func (r *Registry) Document(name string) (*model.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docsByName[name]
	return doc, ok
}

// Documents returns the hosted documents in creation order.
func (r *Registry) Documents() []*model.Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs := make([]*model.Document, len(r.documents))
	copy(docs, r.documents)
	return docs
}

// Broadcast writes the response line (plus a trailing newline) to every
// registered writer. Responses may contain embedded newlines separating
// logical sub-responses; clients treat each wire line independently and
// filter by userName/docName. Write failures are logged and skipped; the
// failing connection's reader will notice the broken socket and
// deregister it.
func (r *Registry) Broadcast(response string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload := []byte(response + "\n")
	for _, cw := range r.writers {
		if _, err := cw.w.Write(payload); err != nil {
			r.logger.Warn("Failed to write to client",
				zap.Int("conn_id", cw.id),
				zap.Error(err))
		}
	}
}

// SendTo writes the response line to a single connection. Used only for
// the id handshake on accept.
func (r *Registry) SendTo(connID int, response string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cw := range r.writers {
		if cw.id == connID {
			if _, err := cw.w.Write([]byte(response + "\n")); err != nil {
				r.logger.Warn("Failed to write to client",
					zap.Int("conn_id", connID),
					zap.Error(err))
			}
			return
		}
	}
}
