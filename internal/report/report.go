// Package report tracks what happened to every statement of an import run.
package report

import "errors"

// Status is the lifecycle state of a report entry
type Status string

const (
	StatusToParse      Status = "to-parse"
	StatusSuccess      Status = "success"
	StatusParsingError Status = "parsing-error"
	StatusUnknownType  Status = "unknown-type"
)

// ErrUnknownStatement is returned when a terminal status is recorded for a
// statement that was never registered with MarkToParse
var ErrUnknownStatement = errors.New("statement was not registered for parsing")

// Entry is one line of the report. Statement entries are keyed by their
// exact text; identical statements share an entry and bump Occurrences.
type Entry struct {
	Text        string
	Status      Status
	Message     string
	Occurrences int
}

// Counts summarizes a report
type Counts struct {
	ToParse      int
	Success      int
	ParsingError int
	UnknownTypes int
	Warnings     int
}

// Report collects statement statuses and diagnostics for one run
type Report struct {
	entries      []*Entry
	byText       map[string]*Entry
	unknownTypes []*Entry
	seenTypes    map[string]bool
	warnings     []string
}

// New creates an empty report
func New() *Report {
	return &Report{
		byText:    make(map[string]*Entry),
		seenTypes: make(map[string]bool),
	}
}

// MarkToParse registers a statement before recognition starts
func (r *Report) MarkToParse(statement string) {
	if e, ok := r.byText[statement]; ok {
		e.Occurrences++
		return
	}
	e := &Entry{Text: statement, Status: StatusToParse, Occurrences: 1}
	r.entries = append(r.entries, e)
	r.byText[statement] = e
}

// MarkSuccess records that the statement was recognized. An entry that
// already reached a terminal status keeps it.
func (r *Report) MarkSuccess(statement string) error {
	e, ok := r.byText[statement]
	if !ok {
		return ErrUnknownStatement
	}
	if e.Status == StatusToParse {
		e.Status = StatusSuccess
	}
	return nil
}

// MarkParsingError records a recognition failure. A failure overrides an
// earlier success of the same statement text, and the first failure message
// is kept.
func (r *Report) MarkParsingError(statement, message string) error {
	e, ok := r.byText[statement]
	if !ok {
		return ErrUnknownStatement
	}
	if e.Status != StatusParsingError {
		e.Status = StatusParsingError
		e.Message = message
	}
	return nil
}

// AddUnknownType records a raw type without a logical mapping, once per name
func (r *Report) AddUnknownType(typeName string) {
	if r.seenTypes[typeName] {
		return
	}
	r.seenTypes[typeName] = true
	r.unknownTypes = append(r.unknownTypes, &Entry{
		Text:        typeName,
		Status:      StatusUnknownType,
		Occurrences: 1,
	})
}

// AddWarning records a non-fatal diagnostic
func (r *Report) AddWarning(message string) {
	r.warnings = append(r.warnings, message)
}

// Entry returns the entry for a statement, or nil
func (r *Report) Entry(statement string) *Entry {
	return r.byText[statement]
}

// Entries returns statement entries in registration order
func (r *Report) Entries() []*Entry {
	return r.entries
}

// UnknownTypes returns the unknown raw types in first-seen order
func (r *Report) UnknownTypes() []string {
	names := make([]string, 0, len(r.unknownTypes))
	for _, e := range r.unknownTypes {
		names = append(names, e.Text)
	}
	return names
}

// UnknownTypeEntries returns the unknown-type entries in first-seen order
func (r *Report) UnknownTypeEntries() []*Entry {
	return r.unknownTypes
}

// Warnings returns the recorded warnings
func (r *Report) Warnings() []string {
	return r.warnings
}

// HasErrors reports whether any statement failed to parse
func (r *Report) HasErrors() bool {
	for _, e := range r.entries {
		if e.Status == StatusParsingError {
			return true
		}
	}
	return false
}

// Counts tallies entries by status
func (r *Report) Counts() Counts {
	c := Counts{
		UnknownTypes: len(r.unknownTypes),
		Warnings:     len(r.warnings),
	}
	for _, e := range r.entries {
		switch e.Status {
		case StatusToParse:
			c.ToParse++
		case StatusSuccess:
			c.Success++
		case StatusParsingError:
			c.ParsingError++
		}
	}
	return c
}
