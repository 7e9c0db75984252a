package ddl

import (
	"sort"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuoted // "name", `name` or [name]
	tokString
	tokNumber
	tokPunct // ( ) , . ;
	tokOperator
)

type token struct {
	kind  tokenKind
	text  string
	line  int
	col   int
	start int // byte offsets into the statement
	end   int
}

// is reports whether the token is the given bare keyword, ignoring case
func (t token) is(keyword string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, keyword)
}

func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

func (t token) isName() bool {
	return t.kind == tokIdent || t.kind == tokQuoted || t.kind == tokString
}

type lexer struct {
	src        string
	pos        int
	lineStarts []int
}

// lex splits a statement into tokens. Comments and whitespace are dropped.
// The returned slice always ends with a tokEOF token.
func lex(src string) ([]token, error) {
	l := &lexer{src: src, lineStarts: []int{0}}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			l.lineStarts = append(l.lineStarts, i+1)
		}
	}

	var tokens []token
	for {
		l.skipSpaceAndComments()
		start := l.pos
		if start >= len(src) {
			tokens = append(tokens, l.token(tokEOF, start))
			return tokens, nil
		}

		c := src[start]
		kind := tokOperator

		switch {
		case isIdentStart(c):
			kind = tokIdent
			for l.pos < len(src) && isIdentPart(src[l.pos]) {
				l.pos++
			}
			// N'...', E'...', X'...', B'...'
			if l.pos-start == 1 && l.peek(0) == '\'' && strings.IndexByte("NnEeXxBb", c) >= 0 {
				kind = tokString
				if err := l.quoted('\'', start, c == 'E' || c == 'e'); err != nil {
					return nil, err
				}
			}
		case c == '"' || c == '`':
			kind = tokQuoted
			if err := l.quoted(c, start, c == '"'); err != nil {
				return nil, err
			}
		case c == '[':
			if l.peek(1) == ']' {
				l.pos += 2
				break
			}
			kind = tokQuoted
			if err := l.quoted(']', start, false); err != nil {
				return nil, err
			}
		case c == '\'':
			kind = tokString
			if err := l.quoted('\'', start, false); err != nil {
				return nil, err
			}
		case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
			kind = tokNumber
			l.number()
		case strings.IndexByte("(),.;", c) >= 0:
			kind = tokPunct
			l.pos++
		case isTwoCharOperator(c, l.peek(1)):
			l.pos += 2
		default:
			l.pos++
		}

		tokens = append(tokens, l.token(kind, start))
	}
}

func (l *lexer) token(kind tokenKind, start int) token {
	line, col := l.position(start)
	return token{
		kind:  kind,
		text:  l.src[start:l.pos],
		line:  line,
		col:   col,
		start: start,
		end:   l.pos,
	}
}

func (l *lexer) position(offset int) (line, col int) {
	i := sort.Search(len(l.lineStarts), func(i int) bool { return l.lineStarts[i] > offset }) - 1
	return i + 1, offset - l.lineStarts[i]
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			l.pos++
		case c == '-' && l.peek(1) == '-':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		case c == '/' && l.peek(1) == '*':
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				l.pos = len(l.src)
				return
			}
			l.pos += end + 4
		default:
			return
		}
	}
}

// quoted consumes quoted text whose opening character is at l.pos. A
// doubled closer stands for itself; with escapes set a backslash also
// escapes the next character (E'...' literals and "..." identifiers).
func (l *lexer) quoted(closer byte, start int, escapes bool) error {
	l.pos++

	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if escapes && c == '\\' {
			l.pos += 2
			continue
		}
		if c == closer {
			if l.peek(1) == closer {
				l.pos += 2
				continue
			}
			l.pos++
			return nil
		}
		l.pos++
	}

	if l.pos > len(l.src) {
		l.pos = len(l.src)
	}
	line, col := l.position(start)
	return &SyntaxError{
		Line:    line,
		Column:  col,
		Near:    l.src[start:min(start+1, len(l.src))],
		Message: "unterminated quoted text",
		Kind:    KindGrammarMismatch,
	}
}

func (l *lexer) number() {
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	if c := l.peek(0); c == 'e' || c == 'E' {
		if isDigit(l.peek(1)) || ((l.peek(1) == '+' || l.peek(1) == '-') && isDigit(l.peek(2))) {
			l.pos += 2
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
	}
	// hex literals such as 0x1F
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
}

func isTwoCharOperator(c, next byte) bool {
	switch string([]byte{c, next}) {
	case "::", "||", "<=", ">=", "<>", "!=":
		return true
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}
