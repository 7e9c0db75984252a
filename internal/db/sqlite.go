package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/sqlimport/internal/schema"
	"github.com/tordrt/sqlimport/internal/sqlname"
)

// SQLiteSource extracts table definitions from an SQLite database file
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource opens an SQLite database and verifies the connection
func NewSQLiteSource(ctx context.Context, path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteSource{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteSource) Close(context.Context) error {
	return s.db.Close()
}

// ExtractSchema extracts the given tables, or all user tables
func (s *SQLiteSource) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	return extractSchema(ctx, s, tables)
}

func (s *SQLiteSource) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}

func (s *SQLiteSource) columns(ctx context.Context, table string) ([]*schema.Column, error) {
	unique, err := s.uniqueColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read unique indexes: %w", err)
	}

	autoIncrement, err := s.hasAutoIncrement(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []*schema.Column
	var pkColumns []*schema.Column
	for rows.Next() {
		col := &schema.Column{}
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&col.Name, &col.Type, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}

		col.Type = baseType(col.Type)
		col.NotNull = notNull != 0
		col.Unique = unique[col.Name]
		if defaultValue.Valid {
			v := sqlname.Unquote(defaultValue.String)
			col.DefaultValue = &v
		}
		if pk > 0 {
			pkColumns = append(pkColumns, col)
		}

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// AUTOINCREMENT is only legal on a single INTEGER PRIMARY KEY column
	if autoIncrement && len(pkColumns) == 1 {
		pkColumns[0].AutoIncrement = true
	}

	return columns, nil
}

// uniqueColumns returns the columns covered by a single-column unique index
func (s *SQLiteSource) uniqueColumns(ctx context.Context, table string) (map[string]bool, error) {
	query := `
		SELECT MIN(ii.name)
		FROM pragma_index_list(?) il
		JOIN pragma_index_info(il.name) ii
		WHERE il."unique" = 1 AND il.origin != 'pk'
		GROUP BY il.name
		HAVING COUNT(*) = 1
	`

	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	unique := make(map[string]bool)
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if name.Valid {
			unique[name.String] = true
		}
	}

	return unique, rows.Err()
}

func (s *SQLiteSource) hasAutoIncrement(ctx context.Context, table string) (bool, error) {
	var ddl sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("table %s does not exist", table)
	}
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(ddl.String), "AUTOINCREMENT"), nil
}

func (s *SQLiteSource) primaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk`, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var pk []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		pk = append(pk, name)
	}

	return pk, rows.Err()
}

func (s *SQLiteSource) foreignKeys(ctx context.Context, table string) ([]fkRow, error) {
	query := `
		SELECT id, "table", "from", "to", on_update, on_delete
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq
	`

	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var fks []fkRow
	for rows.Next() {
		var id int
		var r fkRow
		var to sql.NullString

		if err := rows.Scan(&id, &r.targetTable, &r.column, &to, &r.onUpdate, &r.onDelete); err != nil {
			return nil, err
		}

		// SQLite does not keep constraint names
		r.key = fmt.Sprintf("%d", id)
		r.targetColumn = to.String
		fks = append(fks, r)
	}

	return fks, rows.Err()
}

// baseType drops the argument list of a declared type, e.g. VARCHAR(20)
func baseType(declared string) string {
	base, _, _ := strings.Cut(declared, "(")
	return strings.TrimSpace(base)
}
