package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tordrt/sqlimport/internal/schema"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
)

// MultiFileFormatter writes schema to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	if format != formatMarkdown {
		format = formatText
	}
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes an overview file plus one file per table
func (f *MultiFileFormatter) Format(s *schema.Schema) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(s); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range s.Tables {
		if err := f.writeTableFile(table, s); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeOverview(s *schema.Schema) error {
	filename := filepath.Join(f.OutputDir, "_overview"+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == formatMarkdown {
		_, _ = fmt.Fprintf(file, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(file, "Each table has a corresponding file: `<table_name>%s`\n\n", f.getFileExtension())
		_, _ = fmt.Fprintf(file, "## Tables\n\n")
	} else {
		_, _ = fmt.Fprintf(file, "SCHEMA OVERVIEW\n")
		_, _ = fmt.Fprintf(file, "Each table has a file: <table_name>%s\n\n", f.getFileExtension())
	}

	for _, table := range sortedTables(s) {
		if f.OutputFormat == formatMarkdown {
			_, _ = fmt.Fprintf(file, "- **%s**", table.Name)
		} else {
			_, _ = fmt.Fprintf(file, "%s", table.Name)
		}

		if targets := referencedTables(table); len(targets) > 0 {
			_, _ = fmt.Fprintf(file, " (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintf(file, "\n")
	}

	return nil
}

func (f *MultiFileFormatter) writeTableFile(table *schema.Table, s *schema.Schema) error {
	filename := filepath.Join(f.OutputDir, fileName(table.Name)+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == formatMarkdown {
		NewMarkdownFormatter(file).FormatTable(table)
	} else {
		NewTextFormatter(file).formatTable(table)
	}

	writeIncoming(file, f.OutputFormat, findIncomingReferences(table.Name, s))
	return nil
}

// IncomingReference is a foreign key of another table pointing at this one
type IncomingReference struct {
	OriginTable   string
	OriginColumns []string
	TargetColumns []string
}

func findIncomingReferences(tableName string, s *schema.Schema) []IncomingReference {
	var incoming []IncomingReference

	for _, table := range s.Tables {
		for _, fk := range table.ForeignKeys {
			if strings.EqualFold(fk.TargetTable, tableName) {
				incoming = append(incoming, IncomingReference{
					OriginTable:   table.Name,
					OriginColumns: fk.OriginColumns,
					TargetColumns: fk.TargetColumns,
				})
			}
		}
	}

	return incoming
}

func writeIncoming(w io.Writer, format string, incoming []IncomingReference) {
	if len(incoming) == 0 {
		return
	}

	if format == formatMarkdown {
		_, _ = fmt.Fprintf(w, "### Referenced by\n\n")
	} else {
		_, _ = fmt.Fprintf(w, "\n  REFERENCED BY:\n")
	}

	for _, ref := range incoming {
		target := ""
		if len(ref.TargetColumns) > 0 {
			target = " → " + strings.Join(ref.TargetColumns, ", ")
		}
		if format == formatMarkdown {
			_, _ = fmt.Fprintf(w, "- %s(%s)%s\n", ref.OriginTable, strings.Join(ref.OriginColumns, ", "), target)
		} else {
			_, _ = fmt.Fprintf(w, "    %s(%s)%s\n", ref.OriginTable, strings.Join(ref.OriginColumns, ", "), target)
		}
	}

	if format == formatMarkdown {
		_, _ = fmt.Fprintln(w)
	}
}

func sortedTables(s *schema.Schema) []*schema.Table {
	tables := make([]*schema.Table, len(s.Tables))
	copy(tables, s.Tables)
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].Name < tables[j].Name
	})
	return tables
}

func referencedTables(table *schema.Table) []string {
	var targets []string
	seen := make(map[string]bool)
	for _, fk := range table.ForeignKeys {
		if !seen[fk.TargetTable] {
			seen[fk.TargetTable] = true
			targets = append(targets, fk.TargetTable)
		}
	}
	return targets
}

// fileName keeps table names usable as file names
func fileName(table string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(table)
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == formatMarkdown {
		return ".md"
	}
	return ".txt"
}
