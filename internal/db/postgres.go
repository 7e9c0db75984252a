package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/sqlimport/internal/schema"
)

// PostgresSource extracts table definitions from one PostgreSQL schema
type PostgresSource struct {
	conn   *pgx.Conn
	schema string
}

// NewPostgresSource connects to PostgreSQL and verifies the connection
func NewPostgresSource(ctx context.Context, connString, schemaName string) (*PostgresSource, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSource{conn: conn, schema: schemaName}, nil
}

// Close closes the database connection
func (p *PostgresSource) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}

// ExtractSchema extracts the given tables, or all base tables of the schema
func (p *PostgresSource) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	return extractSchema(ctx, p, tables)
}

func (p *PostgresSource) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := p.conn.Query(ctx, query, p.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

func (p *PostgresSource) columns(ctx context.Context, table string) ([]*schema.Column, error) {
	// user-defined and array types report their udt name (e.g. _int4)
	query := `
		SELECT
			c.column_name,
			CASE WHEN c.data_type IN ('USER-DEFINED', 'ARRAY') THEN c.udt_name ELSE c.data_type END,
			c.is_nullable,
			c.column_default,
			(c.is_identity = 'YES' OR COALESCE(c.column_default, '') LIKE 'nextval(%') AS auto_increment,
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
				WHERE tc.table_schema = $1
					AND tc.table_name = $2
					AND tc.constraint_type = 'UNIQUE'
					AND kcu.column_name = c.column_name
					AND (
						SELECT COUNT(*) FROM information_schema.key_column_usage k2
						WHERE k2.constraint_name = tc.constraint_name
							AND k2.table_schema = tc.table_schema
					) = 1
			) AS is_unique,
			COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int), '')
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := p.conn.Query(ctx, query, p.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []*schema.Column
	for rows.Next() {
		col := &schema.Column{}
		var nullable string

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.DefaultValue, &col.AutoIncrement, &col.Unique, &col.Comment); err != nil {
			return nil, err
		}

		col.NotNull = nullable == "NO"
		if strings.HasPrefix(col.Type, "_") {
			col.Type = col.Type[1:] + "[]"
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (p *PostgresSource) primaryKey(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = $1
			AND table_name = $2
			AND constraint_name IN (
				SELECT constraint_name
				FROM information_schema.table_constraints
				WHERE table_schema = $1
					AND table_name = $2
					AND constraint_type = 'PRIMARY KEY'
			)
		ORDER BY ordinal_position
	`

	rows, err := p.conn.Query(ctx, query, p.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

// foreignKeys reads pg_constraint directly; information_schema cannot pair
// the columns of a composite key reliably
func (p *PostgresSource) foreignKeys(ctx context.Context, table string) ([]fkRow, error) {
	query := `
		SELECT
			con.conname,
			src.attname,
			tgt_class.relname,
			tgt.attname,
			con.confdeltype::text,
			con.confupdtype::text
		FROM pg_constraint con
		JOIN pg_class cls ON cls.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = cls.relnamespace
		JOIN pg_class tgt_class ON tgt_class.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(src_num, tgt_num, ord)
		JOIN pg_attribute src ON src.attrelid = con.conrelid AND src.attnum = k.src_num
		JOIN pg_attribute tgt ON tgt.attrelid = con.confrelid AND tgt.attnum = k.tgt_num
		WHERE con.contype = 'f'
			AND ns.nspname = $1
			AND cls.relname = $2
		ORDER BY con.conname, k.ord
	`

	rows, err := p.conn.Query(ctx, query, p.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []fkRow
	for rows.Next() {
		var r fkRow
		var onDelete, onUpdate string
		if err := rows.Scan(&r.name, &r.column, &r.targetTable, &r.targetColumn, &onDelete, &onUpdate); err != nil {
			return nil, err
		}
		r.key = r.name
		r.onDelete = postgresAction(onDelete)
		r.onUpdate = postgresAction(onUpdate)
		fks = append(fks, r)
	}

	return fks, rows.Err()
}

// postgresAction decodes pg_constraint.confdeltype / confupdtype
func postgresAction(code string) string {
	switch code {
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}
