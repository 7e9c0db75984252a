package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/sqlimport/internal/schema"
)

// TextFormatter formats schema as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the schema in compact text format
func (f *TextFormatter) Format(s *schema.Schema) error {
	for i, table := range s.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.formatTable(table)
	}
	return nil
}

func (f *TextFormatter) formatTable(table *schema.Table) {
	pkStr := ""
	if len(table.PrimaryKey) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey, ", "))
	}
	_, _ = fmt.Fprintf(f.writer, "TABLE %s%s\n", table.Name, pkStr)

	for _, col := range table.Columns() {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", formatColumn(col))
	}

	if len(table.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  FOREIGN KEYS:")
		for _, fk := range table.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "    %s\n", formatForeignKey(fk))
		}
	}
}

func formatColumn(col *schema.Column) string {
	parts := []string{col.Name + ":"}

	typeStr := col.Type
	if typeStr == "" {
		typeStr = "?"
	}
	if col.LogicalType != "" {
		typeStr = fmt.Sprintf("%s [%s]", typeStr, col.LogicalType)
	}
	parts = append(parts, typeStr)

	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	if col.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if col.AutoIncrement {
		parts = append(parts, "AUTO_INCREMENT")
	}
	if col.DefaultValue != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}

	return strings.Join(parts, " ")
}

// formatForeignKey renders "(a, b) → target(x, y)" plus referential actions
func formatForeignKey(fk *schema.ForeignKey) string {
	var b strings.Builder
	if fk.Name != "" {
		b.WriteString(fk.Name)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "(%s) → %s", strings.Join(fk.OriginColumns, ", "), fk.TargetTable)
	if len(fk.TargetColumns) > 0 {
		fmt.Fprintf(&b, "(%s)", strings.Join(fk.TargetColumns, ", "))
	}
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE " + fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE " + fk.OnUpdate)
	}
	return b.String()
}
