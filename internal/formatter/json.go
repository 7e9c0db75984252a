package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tordrt/sqlimport/internal/schema"
)

// JSONFormatter writes the schema as an entity-store document: one entity
// per table, attributes carrying both raw and logical types
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// Document is the JSON export root
type Document struct {
	Entities []Entity `json:"entities"`
}

// Entity is the export form of a table
type Entity struct {
	Name       string      `json:"name"`
	PrimaryKey []string    `json:"primaryKey"`
	Attributes []Attribute `json:"attributes"`
	References []Reference `json:"references,omitempty"`
}

// Attribute is the export form of a column
type Attribute struct {
	Name          string  `json:"name"`
	Type          string  `json:"type,omitempty"`
	LogicalType   string  `json:"logicalType,omitempty"`
	Required      bool    `json:"required"`
	Unique        bool    `json:"unique,omitempty"`
	AutoIncrement bool    `json:"autoIncrement,omitempty"`
	Default       *string `json:"default,omitempty"`
	Comment       string  `json:"comment,omitempty"`
}

// Reference is the export form of a foreign key
type Reference struct {
	Name          string   `json:"name,omitempty"`
	Attributes    []string `json:"attributes"`
	TargetEntity  string   `json:"targetEntity"`
	TargetColumns []string `json:"targetAttributes,omitempty"`
	OnDelete      string   `json:"onDelete,omitempty"`
	OnUpdate      string   `json:"onUpdate,omitempty"`
}

// NewDocument converts a schema into its export form
func NewDocument(s *schema.Schema) Document {
	doc := Document{Entities: make([]Entity, 0, len(s.Tables))}

	for _, table := range s.Tables {
		entity := Entity{
			Name:       table.Name,
			PrimaryKey: append([]string{}, table.PrimaryKey...),
			Attributes: make([]Attribute, 0, len(table.Columns())),
		}

		for _, col := range table.Columns() {
			entity.Attributes = append(entity.Attributes, Attribute{
				Name:          col.Name,
				Type:          col.Type,
				LogicalType:   string(col.LogicalType),
				Required:      col.NotNull || table.IsPrimaryKey(col.Name),
				Unique:        col.Unique,
				AutoIncrement: col.AutoIncrement,
				Default:       col.DefaultValue,
				Comment:       col.Comment,
			})
		}

		for _, fk := range table.ForeignKeys {
			entity.References = append(entity.References, Reference{
				Name:          fk.Name,
				Attributes:    fk.OriginColumns,
				TargetEntity:  fk.TargetTable,
				TargetColumns: fk.TargetColumns,
				OnDelete:      fk.OnDelete,
				OnUpdate:      fk.OnUpdate,
			})
		}

		doc.Entities = append(doc.Entities, entity)
	}

	return doc
}

// Format writes the schema as indented JSON
func (f *JSONFormatter) Format(s *schema.Schema) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(s)); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
