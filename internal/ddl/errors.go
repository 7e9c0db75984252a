package ddl

import "fmt"

// Kind classifies a recognition failure
type Kind int

const (
	// KindGrammarMismatch means the statement is outside the supported DDL subset
	KindGrammarMismatch Kind = iota
	// KindUnresolvedAlterTarget means ALTER TABLE names a table that was never created
	KindUnresolvedAlterTarget
)

func (k Kind) String() string {
	switch k {
	case KindUnresolvedAlterTarget:
		return "unresolved alter target"
	default:
		return "grammar mismatch"
	}
}

// SyntaxError describes why a statement could not be recognized. Line is
// 1-based and Column 0-based, both relative to the statement text.
type SyntaxError struct {
	Line    int
	Column  int
	Near    string
	Message string
	Kind    Kind
}

func (e *SyntaxError) Error() string {
	near := e.Near
	if near == "" {
		near = "<EOF>"
	}
	return fmt.Sprintf("line %d:%d near %q: %s", e.Line, e.Column, near, e.Message)
}
