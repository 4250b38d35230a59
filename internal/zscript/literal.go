package zscript

import (
	"fmt"
	"strings"
)

// Literal is a rendered, double-quoted string literal ready to be embedded in
// a script. Build one with Quote; never concatenate raw text into a Literal.
type Literal string

// EmptyLiteral is the literal for the empty string.
const EmptyLiteral Literal = `""`

// Quote renders s as a script string literal. Backslashes and double quotes
// are escaped with a backslash.
func Quote(s string) Literal {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return Literal(b.String())
}

// Unquote reverses Quote, returning the string the host stores when it
// evaluates the literal.
func Unquote(l Literal) (string, error) {
	s := string(l)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("literal %.32q is not quoted", s)
	}
	body := s[1 : len(s)-1]
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '"' {
			return "", fmt.Errorf("unescaped quote at offset %d", i+1)
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("dangling escape at end of literal")
		}
		b.WriteByte(body[i])
	}
	return b.String(), nil
}

// Len reports the number of bytes the host stores for the literal.
func (l Literal) Len() int {
	s, err := Unquote(l)
	if err != nil {
		return len(l)
	}
	return len(s)
}
