package model

import "github.com/google/uuid"

// Paragraph is the unit of logical grouping inside a document. A document
// currently keeps exactly one active paragraph; the identifier exists so
// that future multi-paragraph routing does not change the data model.
type Paragraph struct {
	ID   string
	Text string
}

// NewParagraph creates an empty paragraph with a fresh identifier.
func NewParagraph() *Paragraph {
	return &Paragraph{ID: uuid.NewString()}
}

// Len returns the length of the paragraph text in bytes.
func (p *Paragraph) Len() int {
	return len(p.Text)
}

func (p *Paragraph) String() string {
	return p.Text
}
