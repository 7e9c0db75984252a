package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/sqlimport/internal/report"
)

// ReportFormatter writes the status report of an import run
type ReportFormatter struct {
	writer io.Writer
}

// NewReportFormatter creates a new report formatter
func NewReportFormatter(w io.Writer) *ReportFormatter {
	return &ReportFormatter{writer: w}
}

// Format writes one line per statement, then unknown types and warnings
func (f *ReportFormatter) Format(r *report.Report) error {
	c := r.Counts()
	_, _ = fmt.Fprintf(f.writer, "STATEMENTS: %d success, %d parsing-error, %d to-parse\n",
		c.Success, c.ParsingError, c.ToParse)

	for _, e := range r.Entries() {
		line := fmt.Sprintf("  [%s] %s", e.Status, summarize(e.Text))
		if e.Occurrences > 1 {
			line += fmt.Sprintf(" (x%d)", e.Occurrences)
		}
		_, _ = fmt.Fprintln(f.writer, line)
		if e.Message != "" {
			_, _ = fmt.Fprintf(f.writer, "      => %s\n", e.Message)
		}
	}

	if types := r.UnknownTypes(); len(types) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintf(f.writer, "UNKNOWN TYPES (mapped to String): %s\n", strings.Join(types, ", "))
	}

	if warnings := r.Warnings(); len(warnings) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "WARNINGS:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(f.writer, "  %s\n", w)
		}
	}

	return nil
}

const summaryWidth = 72

// summarize collapses whitespace and shortens a statement to one line
func summarize(statement string) string {
	s := []rune(strings.Join(strings.Fields(statement), " "))
	if len(s) > summaryWidth {
		return string(s[:summaryWidth-3]) + "..."
	}
	return string(s)
}
