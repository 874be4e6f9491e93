// Package model holds the versioned document model shared by all
// connections. Every mutation carries the version the client observed when
// it issued the edit; the document rebases the edit onto the current
// version before applying it, so edits produced against stale snapshots
// still merge correctly.
package model

import (
	"fmt"
	"strings"
	"time"
)

// MutationKind distinguishes the two recorded mutation types.
type MutationKind int

const (
	// MutationInsert records an insertion of text at a position.
	MutationInsert MutationKind = iota
	// MutationDelete records a deletion of a range.
	MutationDelete
)

// Mutation is one applied edit, stored with the position it was applied at
// after rebasing. history[i] is the mutation that produced version i+1.
type Mutation struct {
	Kind   MutationKind
	Pos    int
	Text   string // inserted text, empty for deletions
	Length int    // deleted length, zero for insertions
}

// Document is a named, versioned text buffer with a collaborator list and
// an append-only chat log. Documents live for the lifetime of the process;
// there is no deletion. A Document is mutated only by the dispatcher, so
// its methods are not safe for concurrent use.
type Document struct {
	name      string
	creator   string
	paragraph *Paragraph
	version   int
	history   []Mutation
	collabs   []string
	chat      strings.Builder
	lastEdit  time.Time
}

// NewDocument creates an empty document owned by creator. The creator is
// added as the first collaborator.
func NewDocument(name, creator string) *Document {
	d := &Document{
		name:      name,
		creator:   creator,
		paragraph: NewParagraph(),
		lastEdit:  time.Now(),
	}
	d.AddCollaborator(creator)
	return d
}

// Name returns the unique document name.
func (d *Document) Name() string {
	return d.name
}

// Creator returns the user name recorded at creation.
func (d *Document) Creator() string {
	return d.creator
}

// Version returns the number of mutations applied so far.
func (d *Document) Version() int {
	return d.version
}

// HistoryLen returns the number of recorded mutations.
func (d *Document) HistoryLen() int {
	return len(d.history)
}

// Text returns the current document text.
func (d *Document) Text() string {
	return d.paragraph.Text
}

// Insert splices text at pos, where pos is relative to the snapshot the
// client observed at version. The position is rebased through every
// mutation committed since then and clamped to the current text. Returns
// the position the text was actually inserted at.
func (d *Document) Insert(pos int, text string, version int) int {
	pos = d.rebase(pos, version)
	if pos < 0 {
		pos = 0
	}
	if pos > d.paragraph.Len() {
		pos = d.paragraph.Len()
	}

	cur := d.paragraph.Text
	d.paragraph.Text = cur[:pos] + text + cur[pos:]
	d.history = append(d.history, Mutation{Kind: MutationInsert, Pos: pos, Text: text})
	d.version++
	d.Touch()
	return pos
}

// Delete removes length bytes starting at pos, rebasing pos the same way
// Insert does and shrinking the range so it stays inside the current text.
// A range that collapses to nothing is still recorded as a no-op mutation
// so that clients observe a version tick. Returns the rebased position and
// the length actually removed.
func (d *Document) Delete(pos, length, version int) (int, int) {
	pos = d.rebase(pos, version)
	if pos < 0 {
		pos = 0
	}
	if pos > d.paragraph.Len() {
		pos = d.paragraph.Len()
	}
	if length < 0 {
		length = 0
	}
	if pos+length > d.paragraph.Len() {
		length = d.paragraph.Len() - pos
	}

	if length > 0 {
		cur := d.paragraph.Text
		d.paragraph.Text = cur[:pos] + cur[pos+length:]
	}
	d.history = append(d.history, Mutation{Kind: MutationDelete, Pos: pos, Length: length})
	d.version++
	d.Touch()
	return pos, length
}

// rebase transforms a position observed at the given version into a
// position valid at the current version by folding in every mutation
// committed in between. Ties favor the intent of the caret: insertions at
// the same position push the new edit right, deletions snap it to the
// start of the removed range.
func (d *Document) rebase(pos, version int) int {
	if version < 0 {
		version = 0
	}
	if version > len(d.history) {
		version = len(d.history)
	}
	for _, m := range d.history[version:] {
		switch m.Kind {
		case MutationInsert:
			if m.Pos <= pos {
				pos += len(m.Text)
			}
		case MutationDelete:
			switch {
			case m.Pos+m.Length <= pos:
				pos -= m.Length
			case m.Pos >= pos:
				// deletion entirely after the caret
			default:
				pos = m.Pos
			}
		}
	}
	return pos
}

// AddCollaborator appends name to the collaborator list if absent.
// Collaborators are never removed: the list records everyone who has ever
// opened the document, in first-open order.
func (d *Document) AddCollaborator(name string) {
	for _, c := range d.collabs {
		if c == name {
			return
		}
	}
	d.collabs = append(d.collabs, name)
}

// Collaborators returns the collaborator names in first-open order.
func (d *Document) Collaborators() []string {
	return d.collabs
}

// CollabString returns the collaborator list as a single display string.
func (d *Document) CollabString() string {
	return strings.Join(d.collabs, ", ")
}

// AppendChat appends line verbatim to the chat log. The line must already
// be newline-terminated.
func (d *Document) AppendChat(line string) {
	d.chat.WriteString(line)
}

// Chat returns the full chat log.
func (d *Document) Chat() string {
	return d.chat.String()
}

// Touch records the current wall-clock time as the last edit time.
func (d *Document) Touch() {
	d.lastEdit = time.Now()
}

// Date formats the last edit time as "H:MM AM , M/D" on a 12-hour clock.
func (d *Document) Date() string {
	t := d.lastEdit
	ampm := "AM"
	if t.Hour() >= 12 {
		ampm = "PM"
	}
	return fmt.Sprintf("%d:%02d %s , %d/%d", t.Hour()%12, t.Minute(), ampm, int(t.Month()), t.Day())
}
