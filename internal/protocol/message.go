package protocol

import (
	"strconv"
	"strings"
)

// Message builds one wire response line of the form <kind>&key=val&...&
// with every value escaped. A dispatch may join several messages with
// newlines into a single broadcast.
type Message struct {
	b strings.Builder
}

// NewMessage starts a message of the given kind.
func NewMessage(kind string) *Message {
	m := &Message{}
	m.b.WriteString(kind)
	m.b.WriteByte('&')
	return m
}

// Field appends a key=value pair, escaping the value.
func (m *Message) Field(key, value string) *Message {
	m.b.WriteString(key)
	m.b.WriteByte('=')
	m.b.WriteString(Escape(value))
	m.b.WriteByte('&')
	return m
}

// IntField appends a key=value pair with an integer value.
func (m *Message) IntField(key string, value int) *Message {
	return m.Field(key, strconv.Itoa(value))
}

// String returns the finished wire line, without a trailing newline.
func (m *Message) String() string {
	return m.b.String()
}

// Join combines message lines into one multi-line response string.
func Join(lines ...string) string {
	return strings.Join(lines, "\n")
}
