package db

import (
	"context"
	"fmt"
	neturl "net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/sqlimport/internal/schema"
)

// Dialect identifies a live database kind
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// Source reads table definitions from a live database into the same model
// the DDL recognizer produces
type Source interface {
	// ExtractSchema extracts the requested tables, or every base table
	// when tables is empty
	ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error)
	Close(ctx context.Context) error
}

// introspector is implemented by every dialect
type introspector interface {
	tableNames(ctx context.Context) ([]string, error)
	columns(ctx context.Context, table string) ([]*schema.Column, error)
	primaryKey(ctx context.Context, table string) ([]string, error)
	foreignKeys(ctx context.Context, table string) ([]fkRow, error)
}

// fkRow is one column pair of a foreign key; rows sharing a key belong to
// the same constraint and arrive in column order
type fkRow struct {
	key          string
	name         string
	column       string
	targetTable  string
	targetColumn string
	onDelete     string
	onUpdate     string
}

// ParseURL detects the dialect and returns the driver connection string
func ParseURL(url string) (Dialect, string, error) {
	if url == "" {
		return "", "", fmt.Errorf("database URL is required")
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return Postgres, url, nil
	}

	if strings.HasPrefix(url, "mysql://") {
		// the Go MySQL driver takes a bare DSN
		return MySQL, strings.TrimPrefix(url, "mysql://"), nil
	}

	if strings.HasPrefix(url, "sqlite://") {
		return SQLite, strings.TrimPrefix(url, "sqlite://"), nil
	}

	return "", "", fmt.Errorf("invalid database URL scheme (must start with postgres://, mysql://, or sqlite://)")
}

// Redact returns url with its password masked, for use as a label in logs
// and stored reports. A URL with an unknown scheme is returned unchanged; one
// whose credentials cannot be parsed is reduced to its scheme.
func Redact(url string) string {
	dialect, conn, err := ParseURL(url)
	if err != nil {
		return url
	}

	switch dialect {
	case Postgres:
		u, err := neturl.Parse(conn)
		if err != nil {
			return strings.SplitN(url, "://", 2)[0] + "://"
		}
		return u.Redacted()
	case MySQL:
		cfg, err := mysql.ParseDSN(conn)
		if err != nil {
			return "mysql://"
		}
		if cfg.Passwd != "" {
			cfg.Passwd = "xxxxx"
		}
		return "mysql://" + cfg.FormatDSN()
	default:
		return url
	}
}

// Open connects to the database behind url. schemaName selects the
// PostgreSQL schema (default "public") or MySQL database (default taken from
// the DSN); SQLite ignores it.
func Open(ctx context.Context, url, schemaName string) (Source, error) {
	dialect, conn, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case Postgres:
		if schemaName == "" {
			schemaName = "public"
		}
		src, err := NewPostgresSource(ctx, conn, schemaName)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return src, nil
	case MySQL:
		if schemaName == "" {
			if schemaName, err = ParseDatabaseName(conn); err != nil {
				return nil, fmt.Errorf("failed to determine database name: %w", err)
			}
		}
		src, err := NewMySQLSource(ctx, conn, schemaName)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		return src, nil
	default:
		src, err := NewSQLiteSource(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
		}
		return src, nil
	}
}

func extractSchema(ctx context.Context, in introspector, requested []string) (*schema.Schema, error) {
	names := requested
	if len(names) == 0 {
		var err error
		if names, err = in.tableNames(ctx); err != nil {
			return nil, fmt.Errorf("failed to get table names: %w", err)
		}
	}

	s := schema.New()
	for _, name := range names {
		table, err := extractTable(ctx, in, name)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", name, err)
		}
		s.AddTable(table)
	}
	return s, nil
}

func extractTable(ctx context.Context, in introspector, name string) (*schema.Table, error) {
	table := schema.NewTable(name)

	columns, err := in.columns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	for _, col := range columns {
		table.AddColumn(col)
	}

	pk, err := in.primaryKey(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract primary key: %w", err)
	}
	for _, col := range pk {
		table.AddPrimaryKeyColumn(col)
	}

	rows, err := in.foreignKeys(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	for _, fk := range groupForeignKeys(rows) {
		table.AddForeignKey(fk)
	}

	return table, nil
}

// groupForeignKeys folds column pairs into one foreign key per constraint,
// keeping the order in which constraints first appear
func groupForeignKeys(rows []fkRow) []*schema.ForeignKey {
	var fks []*schema.ForeignKey
	byKey := make(map[string]*schema.ForeignKey)

	for _, r := range rows {
		fk, ok := byKey[r.key]
		if !ok {
			fk = &schema.ForeignKey{
				Name:          r.name,
				TargetTable:   r.targetTable,
				OriginColumns: []string{},
				TargetColumns: []string{},
				OnDelete:      r.onDelete,
				OnUpdate:      r.onUpdate,
			}
			byKey[r.key] = fk
			fks = append(fks, fk)
		}
		fk.OriginColumns = append(fk.OriginColumns, r.column)
		if r.targetColumn != "" {
			fk.TargetColumns = append(fk.TargetColumns, r.targetColumn)
		}
	}
	return fks
}
