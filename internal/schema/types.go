package schema

import "strings"

// LogicalType is one of the entity store types every SQL type is normalized into
type LogicalType string

const (
	String  LogicalType = "String"
	Float   LogicalType = "Float"
	Integer LogicalType = "Integer"
	Boolean LogicalType = "Boolean"
)

// Schema represents a complete extracted schema
type Schema struct {
	Tables []*Table
}

// New creates an empty schema
func New() *Schema {
	return &Schema{Tables: []*Table{}}
}

// AddTable appends a table in encounter order
func (s *Schema) AddTable(t *Table) {
	s.Tables = append(s.Tables, t)
}

// Table looks up a table by name. An exact match wins over a case-insensitive
// one, and among equal matches the most recently added table is returned.
func (s *Schema) Table(name string) *Table {
	for i := len(s.Tables) - 1; i >= 0; i-- {
		if s.Tables[i].Name == name {
			return s.Tables[i]
		}
	}
	for i := len(s.Tables) - 1; i >= 0; i-- {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return s.Tables[i]
		}
	}
	return nil
}

// TableNames returns table names in encounter order
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Table represents a database table
type Table struct {
	Name        string
	PrimaryKey  []string
	ForeignKeys []*ForeignKey

	columns []*Column
	byName  map[string]int
}

// NewTable creates a table with an empty primary key
func NewTable(name string) *Table {
	return &Table{
		Name:        name,
		PrimaryKey:  []string{},
		ForeignKeys: []*ForeignKey{},
		byName:      make(map[string]int),
	}
}

// AddColumn adds a column, replacing an existing column of the same name in place
func (t *Table) AddColumn(c *Column) {
	if t.byName == nil {
		t.byName = make(map[string]int)
	}
	if i, ok := t.byName[c.Name]; ok {
		t.columns[i] = c
		return
	}
	t.byName[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
}

// Column returns the named column or nil
func (t *Table) Column(name string) *Column {
	if i, ok := t.byName[name]; ok {
		return t.columns[i]
	}
	return nil
}

// Columns returns the columns in declaration order
func (t *Table) Columns() []*Column {
	return t.columns
}

// ColumnNames returns the column names in declaration order
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		names = append(names, c.Name)
	}
	return names
}

// AddPrimaryKeyColumn appends a column name to the primary key
func (t *Table) AddPrimaryKeyColumn(name string) {
	t.PrimaryKey = append(t.PrimaryKey, name)
}

// IsPrimaryKey reports whether the column is part of the primary key
func (t *Table) IsPrimaryKey(name string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == name {
			return true
		}
	}
	return false
}

// AddForeignKey attaches a foreign key to the table
func (t *Table) AddForeignKey(fk *ForeignKey) {
	fk.OriginTable = t.Name
	t.ForeignKeys = append(t.ForeignKeys, fk)
}

// ForeignKeyForColumn returns the first foreign key whose origin columns
// include the named column, or nil
func (t *Table) ForeignKeyForColumn(name string) *ForeignKey {
	for _, fk := range t.ForeignKeys {
		for _, col := range fk.OriginColumns {
			if col == name {
				return fk
			}
		}
	}
	return nil
}

// Column represents a table column
type Column struct {
	Name          string
	Type          string // raw SQL type, "" when the definition has none
	LogicalType   LogicalType
	DefaultValue  *string
	NotNull       bool
	Unique        bool
	AutoIncrement bool
	Comment       string
}

// ForeignKey represents a foreign key relationship. Origin and target
// columns correspond by position.
type ForeignKey struct {
	Name          string
	OriginTable   string
	OriginColumns []string
	TargetTable   string
	TargetColumns []string
	OnDelete      string
	OnUpdate      string
}
