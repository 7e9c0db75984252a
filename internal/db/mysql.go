package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/sqlimport/internal/schema"
)

// MySQLSource extracts table definitions from one MySQL database
type MySQLSource struct {
	db         *sql.DB
	schemaName string
}

// NewMySQLSource opens a MySQL connection and verifies it
func NewMySQLSource(ctx context.Context, dsn, schemaName string) (*MySQLSource, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLSource{db: db, schemaName: schemaName}, nil
}

// ParseDatabaseName returns the database named in a MySQL DSN
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("MySQL DSN does not name a database")
	}
	return cfg.DBName, nil
}

// Close closes the database connection
func (m *MySQLSource) Close(context.Context) error {
	return m.db.Close()
}

// ExtractSchema extracts the given tables, or all base tables of the database
func (m *MySQLSource) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	return extractSchema(ctx, m, tables)
}

func (m *MySQLSource) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := m.db.QueryContext(ctx, query, m.schemaName)
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

func (m *MySQLSource) columns(ctx context.Context, table string) ([]*schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.extra LIKE '%auto_increment%' AS auto_increment,
			EXISTS (
				SELECT 1 FROM information_schema.statistics s
				WHERE s.table_schema = c.table_schema
					AND s.table_name = c.table_name
					AND s.column_name = c.column_name
					AND s.non_unique = 0
					AND s.index_name != 'PRIMARY'
					AND (
						SELECT COUNT(*) FROM information_schema.statistics s2
						WHERE s2.table_schema = s.table_schema
							AND s2.table_name = s.table_name
							AND s2.index_name = s.index_name
					) = 1
			) AS is_unique,
			c.column_comment
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := m.db.QueryContext(ctx, query, m.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []*schema.Column
	for rows.Next() {
		col := &schema.Column{}
		var nullable string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &defaultVal, &col.AutoIncrement, &col.Unique, &col.Comment); err != nil {
			return nil, err
		}

		col.NotNull = nullable == "NO"
		if defaultVal.Valid {
			col.DefaultValue = &defaultVal.String
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (m *MySQLSource) primaryKey(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`

	rows, err := m.db.QueryContext(ctx, query, m.schemaName, table)
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

func (m *MySQLSource) foreignKeys(ctx context.Context, table string) ([]fkRow, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.delete_rule,
			rc.update_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.table_schema
			AND rc.constraint_name = kcu.constraint_name
			AND rc.table_name = kcu.table_name
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := m.db.QueryContext(ctx, query, m.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var fks []fkRow
	for rows.Next() {
		var r fkRow
		if err := rows.Scan(&r.name, &r.column, &r.targetTable, &r.targetColumn, &r.onDelete, &r.onUpdate); err != nil {
			return nil, err
		}
		r.key = r.name
		fks = append(fks, r)
	}

	return fks, rows.Err()
}
