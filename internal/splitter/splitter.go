// Package splitter partitions a raw SQL script into individual statements.
//
// A statement starts at the first ASCII letter found outside comments and
// quoted text, and ends at the next semicolon found outside comments and
// quoted text (or at end of input). Line comments (--), block comments
// (/* */, not nestable), double-quoted text and single-quoted literals are
// tracked; markers inside another active mode are inert. A backslash escapes
// the next character in double-quoted text only.
package splitter

import (
	"fmt"
	"strings"
)

// Statement is one candidate statement cut from a script
type Statement struct {
	Text   string
	Offset int // byte offset of the first character in the script
	Line   int // 1-based line of the first character in the script
}

type mode int

const (
	modeNone mode = iota
	modeLineComment
	modeBlockComment
	modeDoubleQuote
	modeSingleQuote
)

func (m mode) String() string {
	switch m {
	case modeLineComment:
		return "line comment"
	case modeBlockComment:
		return "block comment"
	case modeDoubleQuote:
		return "quoted text"
	case modeSingleQuote:
		return "string literal"
	default:
		return "statement"
	}
}

// BoundaryError reports that the script ended inside a block comment or
// quoted text. The statement being scanned at that point is dropped.
type BoundaryError struct {
	Mode   string
	Offset int
	Line   int
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("unterminated %s starting at line %d (offset %d)", e.Mode, e.Line, e.Offset)
}

// Scanner yields the statements of a script one at a time. It never reads
// past the end of the text and can be restarted with Reset.
type Scanner struct {
	text string
	pos  int
	done bool
	err  error

	// incremental line counting
	lineOffset int
	line       int
}

// NewScanner creates a scanner over the given script
func NewScanner(text string) *Scanner {
	s := &Scanner{text: text}
	s.Reset()
	return s
}

// Reset rewinds the scanner to the beginning of the script
func (s *Scanner) Reset() {
	s.pos = 0
	s.done = false
	s.err = nil
	s.lineOffset = 0
	s.line = 1
}

// Err returns the boundary anomaly met while scanning, if any.
// It is informational: statements before the anomaly are still valid.
func (s *Scanner) Err() error {
	return s.err
}

// Next returns the next statement, or false once the script is exhausted
func (s *Scanner) Next() (Statement, bool) {
	if s.done {
		return Statement{}, false
	}

	start, m, modeStart := s.scan(s.pos, isLetter)
	if start >= len(s.text) {
		s.finish(m, modeStart)
		return Statement{}, false
	}

	end, m, modeStart := s.scan(start, isTerminator)
	if end >= len(s.text) && unterminated(m) {
		s.finish(m, modeStart)
		return Statement{}, false
	}

	stmt := Statement{
		Text:   s.text[start:end],
		Offset: start,
		Line:   s.lineAt(start),
	}

	s.pos = end + 1
	if s.pos >= len(s.text) {
		s.done = true
	}

	return stmt, true
}

func (s *Scanner) finish(m mode, modeStart int) {
	s.done = true
	if unterminated(m) {
		s.err = &BoundaryError{
			Mode:   m.String(),
			Offset: modeStart,
			Line:   s.lineAt(modeStart),
		}
	}
}

// lineAt converts an offset into a line number; offsets must not decrease
// between calls until the next Reset.
func (s *Scanner) lineAt(offset int) int {
	if offset < s.lineOffset {
		return 1 + strings.Count(s.text[:offset], "\n")
	}
	s.line += strings.Count(s.text[s.lineOffset:offset], "\n")
	s.lineOffset = offset
	return s.line
}

// scan walks the text from pos until stop matches a character outside any
// comment or quoted mode. It returns the stop position (or len(text)) with
// the mode active at that point and the offset where that mode began.
func (s *Scanner) scan(pos int, stop func(byte) bool) (int, mode, int) {
	text := s.text
	m := modeNone
	modeStart := -1

	for pos < len(text) {
		c := text[pos]

		switch m {
		case modeLineComment:
			if c == '\n' || c == '\r' {
				m = modeNone
			}
			pos++
			continue
		case modeBlockComment:
			if c == '*' && peek(text, pos+1) == '/' {
				m = modeNone
				pos += 2
				continue
			}
			pos++
			continue
		case modeDoubleQuote:
			if c == '\\' {
				pos += 2
				continue
			}
			if c == '"' {
				m = modeNone
			}
			pos++
			continue
		case modeSingleQuote:
			// backslash is an ordinary character in a standard string
			// literal; '' closes and reopens, which leaves the mode intact
			if c == '\'' {
				m = modeNone
			}
			pos++
			continue
		}

		switch {
		case c == '-' && peek(text, pos+1) == '-':
			m, modeStart = modeLineComment, pos
			pos += 2
			continue
		case c == '/' && peek(text, pos+1) == '*':
			m, modeStart = modeBlockComment, pos
			pos += 2
			continue
		case c == '"':
			m, modeStart = modeDoubleQuote, pos
			pos++
			continue
		case c == '\'':
			m, modeStart = modeSingleQuote, pos
			pos++
			continue
		}

		if stop(c) {
			return pos, modeNone, -1
		}
		pos++
	}

	return len(text), m, modeStart
}

// Split returns every statement of the script. A non-nil error is a
// *BoundaryError; the returned statements are usable regardless.
func Split(text string) ([]Statement, error) {
	s := NewScanner(text)
	var statements []Statement
	for {
		stmt, ok := s.Next()
		if !ok {
			break
		}
		statements = append(statements, stmt)
	}
	return statements, s.Err()
}

func unterminated(m mode) bool {
	return m == modeBlockComment || m == modeDoubleQuote || m == modeSingleQuote
}

func peek(text string, pos int) byte {
	if pos < len(text) {
		return text[pos]
	}
	return 0
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isTerminator(c byte) bool {
	return c == ';'
}
