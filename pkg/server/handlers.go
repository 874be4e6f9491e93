package server

import (
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"gopad/internal/model"
	"gopad/internal/protocol"
	"gopad/internal/session"
)

// invalidRequest is the unframed answer to malformed or unanswerable
// requests. The connection stays open.
const invalidRequest = "Invalid request"

// handshake builds the id line sent to a freshly accepted connection.
func handshake(connID int) string {
	return protocol.NewMessage("id").IntField("id", connID).String()
}

// handle parses one queued request and runs the matching mutation,
// returning the response string to broadcast. It runs on the dispatcher
// goroutine only.
func (s *Server) handle(req request) string {
	r := protocol.ParseRequest(req.connID, req.line)

	s.logger.Debug("Handling request",
		zap.String("kind", string(r.Kind)),
		zap.Int("conn_id", r.ConnID))

	switch r.Kind {
	case protocol.KindLogin:
		return s.logIn(r.Field("userName"), r.ConnID)
	case protocol.KindNewDoc:
		return s.newDoc(r.Field("userName"), r.Field("docName"))
	case protocol.KindOpenDoc:
		return s.openDoc(r.Field("userName"), r.Field("docName"))
	case protocol.KindChange:
		return s.changeDoc(r)
	case protocol.KindExitDoc:
		return s.exitDoc(r.Field("userName"), r.Field("docName"))
	case protocol.KindLogout:
		return s.logOut(r.Field("userName"), r.ConnID)
	case protocol.KindCorrectError:
		return s.correctError(r.Field("userName"), r.Field("docName"))
	case protocol.KindChat:
		return s.chat(r.Field("userName"), r.Field("docName"), r.Field("chatContent"))
	default:
		return invalidRequest
	}
}

// logIn attempts to log the user in; names must be unique among online
// users. A successful login answers with the user's id followed by the
// document listing for the doc table.
func (s *Server) logIn(userName string, connID int) string {
	if err := s.registry.Login(userName, connID); err != nil {
		if errors.Is(err, session.ErrUserOnline) {
			return protocol.NewMessage("notloggedin").IntField("id", connID).String()
		}
		return invalidRequest
	}

	loggedIn := protocol.NewMessage("loggedin").
		Field("userName", userName).
		IntField("id", connID).
		String()
	return protocol.Join(loggedIn, s.documentInfo(userName))
}

// logOut removes the user from the online set. The color mapping is
// retained so the same user returning gets the same color.
func (s *Server) logOut(userName string, connID int) string {
	s.registry.Logout(userName, connID)
	return protocol.NewMessage("loggedout").Field("userName", userName).String()
}

// newDoc creates a document, rejecting duplicate names.
func (s *Server) newDoc(userName, docName string) string {
	doc := model.NewDocument(docName, userName)
	if err := s.registry.AddDocument(doc); err != nil {
		return protocol.NewMessage("notcreatedduplicate").
			Field("userName", userName).
			String()
	}
	return protocol.NewMessage("created").
		Field("userName", userName).
		Field("docName", docName).
		Field("date", doc.Date()).
		String()
}

// openDoc adds the user to the document's collaborator list and answers
// with an update line advertising the new collaborator set followed by an
// opened line carrying the full document state.
func (s *Server) openDoc(userName, docName string) string {
	doc, ok := s.registry.Document(docName)
	if !ok {
		return invalidRequest
	}
	doc.AddCollaborator(userName)

	collaborators := doc.CollabString()
	colors := s.collabColors(doc)

	update := protocol.NewMessage("update").
		Field("docName", docName).
		Field("collaborators", collaborators).
		Field("colors", colors).
		String()
	opened := protocol.NewMessage("opened").
		Field("userName", userName).
		Field("docName", docName).
		Field("collaborators", collaborators).
		IntField("version", doc.Version()).
		Field("colors", colors).
		Field("chatContent", protocol.EncodeDocText(doc.Chat())).
		Field("docContent", protocol.EncodeDocText(doc.Text())).
		String()
	return protocol.Join(update, opened)
}

// changeDoc applies an insertion or deletion issued against the version
// the client observed. The broadcast carries the rebased position (and,
// for deletions, the clamped length) together with the new version, so
// every client can splice the change into its buffer verbatim and
// converge.
func (s *Server) changeDoc(r *protocol.Request) string {
	doc, ok := s.registry.Document(r.Field("docName"))
	if !ok {
		return invalidRequest
	}

	position, errPos := strconv.Atoi(r.Field("position"))
	length, errLen := strconv.Atoi(r.Field("length"))
	version, errVer := strconv.Atoi(r.Field("version"))
	if errPos != nil || errLen != nil || errVer != nil || position < 0 || length < 0 {
		return invalidRequest
	}

	userName := r.Field("userName")

	switch r.Field("type") {
	case "insertion":
		color, ok := s.registry.Color(userName)
		if !ok {
			return invalidRequest
		}
		change := r.Field("change")
		newPos := doc.Insert(position, protocol.DecodeDocText(change), version)
		return protocol.NewMessage("changed").
			Field("type", "insertion").
			Field("userName", userName).
			Field("docName", doc.Name()).
			IntField("position", newPos).
			IntField("length", length).
			IntField("version", doc.Version()).
			Field("color", color.String()).
			Field("change", change).
			String()

	case "deletion":
		newPos, newLen := doc.Delete(position, length, version)
		return protocol.NewMessage("changed").
			Field("type", "deletion").
			Field("userName", userName).
			Field("docName", doc.Name()).
			IntField("position", newPos).
			IntField("length", newLen).
			IntField("version", doc.Version()).
			String()

	default:
		return invalidRequest
	}
}

// exitDoc returns the user to the doc table. The registry is not touched:
// the user stays online and stays on the document's collaborator list,
// which records everyone who has ever opened it.
func (s *Server) exitDoc(userName, docName string) string {
	exited := protocol.NewMessage("exiteddoc").
		Field("userName", userName).
		Field("docName", docName).
		String()
	return protocol.Join(exited, s.documentInfo(userName))
}

// correctError resyncs a client that self-reported losing sync by sending
// the full current content.
func (s *Server) correctError(userName, docName string) string {
	doc, ok := s.registry.Document(docName)
	if !ok {
		return invalidRequest
	}
	return protocol.NewMessage("corrected").
		Field("userName", userName).
		Field("docName", docName).
		Field("content", protocol.EncodeDocText(doc.Text())).
		String()
}

// chat appends the message to the document's chat log and broadcasts it.
func (s *Server) chat(userName, docName, chatContent string) string {
	doc, ok := s.registry.Document(docName)
	if !ok {
		return invalidRequest
	}
	doc.AppendChat(userName + " : " + chatContent + "\n")
	return protocol.NewMessage("chat").
		Field("userName", userName).
		Field("docName", docName).
		Field("chatContent", chatContent).
		String()
}

// documentInfo renders the docinfo listing for the doc table: one line
// per hosted document, terminated by an enddocinfo line.
func (s *Server) documentInfo(userName string) string {
	var b strings.Builder
	for _, doc := range s.registry.Documents() {
		b.WriteString(protocol.NewMessage("docinfo").
			Field("docName", doc.Name()).
			Field("date", doc.Date()).
			Field("collab", doc.CollabString()).
			Field("userName", userName).
			String())
		b.WriteString("\n")
	}
	b.WriteString(protocol.NewMessage("enddocinfo").Field("userName", userName).String())
	return b.String()
}

// collabColors renders the space-terminated color list aligned with the
// document's collaborator order. Collaborators whose color mapping was
// forgotten on connection loss are skipped.
func (s *Server) collabColors(doc *model.Document) string {
	var b strings.Builder
	for _, name := range doc.Collaborators() {
		if color, ok := s.registry.Color(name); ok {
			b.WriteString(color.String())
			b.WriteString(" ")
		}
	}
	return b.String()
}
