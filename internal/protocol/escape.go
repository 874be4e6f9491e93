// Package protocol implements the line-oriented wire grammar spoken by
// clients: one request per line of the form
//
//	<KIND>&key1=val1&key2=val2&...&
//
// Field values are backslash-escaped so that literal delimiters inside a
// payload do not collide with the grammar, and document text carries its
// newlines as TAB characters so a payload never spans wire lines.
package protocol

import "strings"

// DocNewline is the on-wire stand-in for a newline inside document text.
// Clients guarantee the user cannot type a literal TAB, so the mapping is
// unambiguous.
const DocNewline = "\t"

// Escape renders value so it can be embedded in a wire field: backslash,
// '&', '=' and newline are replaced with backslash escapes.
func Escape(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '\\':
			b.WriteString(`\\`)
		case '&':
			b.WriteString(`\&`)
		case '=':
			b.WriteString(`\=`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(value[i])
		}
	}
	return b.String()
}

// Unescape is the inverse of Escape. Unrecognized escapes and a trailing
// bare backslash are kept literally rather than rejected; the dispatcher
// answers malformed requests, it does not drop connections over them.
func Unescape(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' || i+1 == len(value) {
			b.WriteByte(c)
			continue
		}
		i++
		switch value[i] {
		case '\\':
			b.WriteByte('\\')
		case '&':
			b.WriteByte('&')
		case '=':
			b.WriteByte('=')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte('\\')
			b.WriteByte(value[i])
		}
	}
	return b.String()
}

// EncodeDocText converts document text to its wire form, newlines as TABs.
func EncodeDocText(text string) string {
	return strings.ReplaceAll(text, "\n", DocNewline)
}

// DecodeDocText converts wire-form document text back to real newlines.
func DecodeDocText(text string) string {
	return strings.ReplaceAll(text, DocNewline, "\n")
}
