package protocol

import "strings"

// Kind identifies a request type.
type Kind string

// Request kinds. CHANGEDOC, CORRECTERROR and CHATMESSAGE are accepted as
// aliases of CHANGE, CORRECT_ERROR and CHAT respectively.
const (
	KindLogin        Kind = "LOGIN"
	KindNewDoc       Kind = "NEWDOC"
	KindOpenDoc      Kind = "OPENDOC"
	KindChange       Kind = "CHANGE"
	KindExitDoc      Kind = "EXITDOC"
	KindLogout       Kind = "LOGOUT"
	KindCorrectError Kind = "CORRECT_ERROR"
	KindChat         Kind = "CHAT"
	KindInvalid      Kind = "INVALID"
)

var kindAliases = map[string]Kind{
	"LOGIN":         KindLogin,
	"NEWDOC":        KindNewDoc,
	"OPENDOC":       KindOpenDoc,
	"CHANGE":        KindChange,
	"CHANGEDOC":     KindChange,
	"EXITDOC":       KindExitDoc,
	"LOGOUT":        KindLogout,
	"CORRECT_ERROR": KindCorrectError,
	"CORRECTERROR":  KindCorrectError,
	"CHAT":          KindChat,
	"CHATMESSAGE":   KindChat,
}

// Request is one parsed wire line, tagged with the connection it arrived
// on.
type Request struct {
	Kind   Kind
	ConnID int
	Fields map[string]string
}

// Field returns the named field value, or the empty string if absent.
func (r *Request) Field(name string) string {
	return r.Fields[name]
}

// ParseRequest tokenizes one wire line into a typed request. The leading
// token before the first '&' is the kind; the remaining '&'-separated
// tokens are key=value fields with escaped values. Unknown kinds yield
// KindInvalid; the caller decides how to answer.
func ParseRequest(connID int, line string) *Request {
	tokens := splitUnescaped(line, '&')
	req := &Request{
		Kind:   KindInvalid,
		ConnID: connID,
		Fields: make(map[string]string),
	}
	if len(tokens) == 0 {
		return req
	}
	if kind, ok := kindAliases[strings.TrimSpace(tokens[0])]; ok {
		req.Kind = kind
	}
	for _, token := range tokens[1:] {
		if token == "" {
			continue
		}
		kv := splitUnescaped(token, '=')
		if len(kv) != 2 {
			continue
		}
		req.Fields[Unescape(kv[0])] = Unescape(kv[1])
	}
	return req
}

// splitUnescaped splits s on sep, ignoring occurrences preceded by a
// backslash.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
