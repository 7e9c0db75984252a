package ddl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/sqlimport/internal/schema"
)

func recognize(t *testing.T, statements ...string) *schema.Schema {
	t.Helper()
	s := schema.New()
	r := NewRecognizer(s)
	for _, stmt := range statements {
		require.NoError(t, r.Recognize(stmt), "statement: %s", stmt)
	}
	return s
}

func defaultOf(c *schema.Column) string {
	if c.DefaultValue == nil {
		return "<nil>"
	}
	return *c.DefaultValue
}

func TestRecognizeSimpleTable(t *testing.T) {
	s := recognize(t, "CREATE TABLE t (a INT PRIMARY KEY, b VARCHAR(10))")

	require.Len(t, s.Tables, 1)
	table := s.Tables[0]
	assert.Equal(t, "t", table.Name)
	assert.Equal(t, []string{"a", "b"}, table.ColumnNames())
	assert.Equal(t, "INT", table.Column("a").Type)
	assert.Equal(t, "VARCHAR", table.Column("b").Type)
	assert.Equal(t, []string{"a"}, table.PrimaryKey)
	assert.Empty(t, table.ForeignKeys)
}

func TestRecognizeCompositePrimaryKey(t *testing.T) {
	s := recognize(t, "CREATE TABLE t (a INT, b INT, PRIMARY KEY(b,a))")

	require.Len(t, s.Tables, 1)
	assert.Equal(t, []string{"b", "a"}, s.Tables[0].PrimaryKey)
}

func TestRecognizeInlineForeignKey(t *testing.T) {
	s := recognize(t, "CREATE TABLE child (pid INT REFERENCES parent(id))")

	require.Len(t, s.Tables, 1)
	require.Len(t, s.Tables[0].ForeignKeys, 1)
	fk := s.Tables[0].ForeignKeys[0]
	assert.Equal(t, "child", fk.OriginTable)
	assert.Equal(t, []string{"pid"}, fk.OriginColumns)
	assert.Equal(t, "parent", fk.TargetTable)
	assert.Equal(t, []string{"id"}, fk.TargetColumns)
	assert.Same(t, fk, s.Tables[0].ForeignKeyForColumn("pid"))
}

func TestRecognizeTypeNames(t *testing.T) {
	s := recognize(t, `CREATE TABLE t (
		a character varying(20),
		b double precision,
		c timestamp(6) with time zone,
		d int unsigned NOT NULL,
		e integer[],
		f "char",
		g
	)`)

	table := s.Tables[0]
	tests := map[string]string{
		"a": "character varying",
		"b": "double precision",
		"c": "timestamp with time zone",
		"d": "int",
		"e": "integer[]",
		"f": "char",
		"g": "",
	}
	for name, want := range tests {
		col := table.Column(name)
		require.NotNil(t, col, "column %s", name)
		assert.Equal(t, want, col.Type, "column %s", name)
	}
	assert.True(t, table.Column("d").NotNull)
	assert.False(t, table.Column("a").NotNull)
}

func TestRecognizeDefaults(t *testing.T) {
	s := recognize(t, `CREATE TABLE t (
		a text DEFAULT 'x',
		b int DEFAULT -1,
		c timestamp DEFAULT now() NOT NULL,
		d varchar(5) DEFAULT 'y'::character varying,
		e int,
		f int DEFAULT (1 + 2),
		g boolean DEFAULT TRUE NULL,
		h serial DEFAULT nextval('h_seq'::regclass),
		i text DEFAULT 'a' || 'b',
		j text DEFAULT 'C:\'
	)`)

	table := s.Tables[0]
	tests := map[string]string{
		"a": "x",
		"b": "-1",
		"c": "now()",
		"d": "'y'::character varying",
		"e": "<nil>",
		"f": "(1 + 2)",
		"g": "TRUE",
		"h": "nextval('h_seq'::regclass)",
		"i": "'a' || 'b'",
		"j": `C:\`,
	}
	for name, want := range tests {
		assert.Equal(t, want, defaultOf(table.Column(name)), "column %s", name)
	}
	assert.True(t, table.Column("c").NotNull)
	assert.False(t, table.Column("g").NotNull)
}

func TestRecognizeTableLevelForeignKey(t *testing.T) {
	s := recognize(t, `CREATE TABLE orders (
		id integer NOT NULL,
		customer_id integer,
		region text,
		CONSTRAINT orders_pk PRIMARY KEY (id),
		CONSTRAINT orders_customer_fk FOREIGN KEY (customer_id, region)
			REFERENCES customers (id, region)
			ON DELETE CASCADE ON UPDATE SET NULL DEFERRABLE INITIALLY DEFERRED
	)`)

	table := s.Tables[0]
	assert.Equal(t, []string{"id"}, table.PrimaryKey)
	require.Len(t, table.ForeignKeys, 1)

	fk := table.ForeignKeys[0]
	assert.Equal(t, "orders_customer_fk", fk.Name)
	assert.Equal(t, "orders", fk.OriginTable)
	assert.Equal(t, []string{"customer_id", "region"}, fk.OriginColumns)
	assert.Equal(t, "customers", fk.TargetTable)
	assert.Equal(t, []string{"id", "region"}, fk.TargetColumns)
	assert.Equal(t, "CASCADE", fk.OnDelete)
	assert.Equal(t, "SET NULL", fk.OnUpdate)
}

func TestRecognizeAlterTable(t *testing.T) {
	s := recognize(t,
		"CREATE TABLE public.customers (id integer NOT NULL, name text)",
		"CREATE TABLE orders (id integer, cid integer)",
		"ALTER TABLE ONLY public.customers ADD CONSTRAINT customers_pkey PRIMARY KEY (id)",
		"ALTER TABLE orders ADD CONSTRAINT orders_cid_fk FOREIGN KEY (cid) REFERENCES customers(id) NOT VALID, ADD CONSTRAINT orders_pkey PRIMARY KEY (id)",
	)

	require.Len(t, s.Tables, 2)
	customers, orders := s.Tables[0], s.Tables[1]
	assert.Equal(t, "customers", customers.Name)
	assert.Equal(t, []string{"id"}, customers.PrimaryKey)
	assert.Equal(t, []string{"id"}, orders.PrimaryKey)

	require.Len(t, orders.ForeignKeys, 1)
	fk := orders.ForeignKeys[0]
	assert.Equal(t, "orders_cid_fk", fk.Name)
	assert.Equal(t, "orders", fk.OriginTable)
	assert.Equal(t, []string{"cid"}, fk.OriginColumns)
	assert.Equal(t, "customers", fk.TargetTable)
}

func TestRecognizeAlterTableIfExistsOnly(t *testing.T) {
	tests := []string{
		"ALTER TABLE IF EXISTS ONLY t ADD CONSTRAINT t_pkey PRIMARY KEY (a)",
		"ALTER TABLE ONLY IF EXISTS t ADD CONSTRAINT t_pkey PRIMARY KEY (a)",
	}

	for _, stmt := range tests {
		t.Run(stmt, func(t *testing.T) {
			s := recognize(t, "CREATE TABLE t (a int)", stmt)
			assert.Equal(t, []string{"a"}, s.Tables[0].PrimaryKey)
		})
	}
}

func TestRecognizeTableOptions(t *testing.T) {
	s := recognize(t,
		"CREATE TABLE p (a int) WITH (fillfactor=70) TABLESPACE pg_default",
		"CREATE TABLE q (a int) PARTITION BY RANGE (a)",
		"CREATE TABLE r (a int) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='rows'",
	)
	assert.Equal(t, []string{"p", "q", "r"}, s.TableNames())
}

func TestRecognizeAlterTableUsesLatestTable(t *testing.T) {
	s := recognize(t,
		"CREATE TABLE t (a int)",
		"CREATE TABLE T (b int)",
		"ALTER TABLE t ADD CONSTRAINT pk PRIMARY KEY (a)",
	)
	// exact match wins over the later case-insensitive one
	assert.Equal(t, []string{"a"}, s.Tables[0].PrimaryKey)
	assert.Empty(t, s.Tables[1].PrimaryKey)
}

func TestRecognizeMySQL(t *testing.T) {
	s := recognize(t,
		"CREATE TABLE `users` (\n"+
			"  `id` int(11) unsigned NOT NULL AUTO_INCREMENT,\n"+
			"  `key` varchar(32) DEFAULT NULL COMMENT 'lookup key',\n"+
			"  `email` varchar(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,\n"+
			"  `created_at` timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,\n"+
			"  PRIMARY KEY (`id`),\n"+
			"  UNIQUE KEY `users_email` (`email`),\n"+
			"  KEY `idx_key` (`key`(10)),\n"+
			"  FULLTEXT KEY `ft_email` (`email`)\n"+
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		"CREATE TABLE kv (key varchar(10) NOT NULL, value text, INDEX (value(20)))",
	)

	require.Len(t, s.Tables, 2)
	users := s.Tables[0]
	assert.Equal(t, "users", users.Name)
	assert.Equal(t, []string{"id", "key", "email", "created_at"}, users.ColumnNames())
	assert.Equal(t, []string{"id"}, users.PrimaryKey)

	id := users.Column("id")
	assert.Equal(t, "int", id.Type)
	assert.True(t, id.NotNull)
	assert.True(t, id.AutoIncrement)

	key := users.Column("key")
	assert.Equal(t, "NULL", defaultOf(key))
	assert.Equal(t, "lookup key", key.Comment)

	email := users.Column("email")
	assert.Equal(t, "varchar", email.Type)
	assert.True(t, email.NotNull)
	assert.True(t, email.Unique)

	assert.Equal(t, "CURRENT_TIMESTAMP", defaultOf(users.Column("created_at")))

	kv := s.Tables[1]
	assert.Equal(t, []string{"key", "value"}, kv.ColumnNames())
	assert.Equal(t, "varchar", kv.Column("key").Type)
}

func TestRecognizeSQLite(t *testing.T) {
	s := recognize(t, `CREATE TABLE IF NOT EXISTS "notes" (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		body TEXT NOT NULL ON CONFLICT REPLACE,
		author_id INTEGER CONSTRAINT notes_author_fk REFERENCES authors (id) ON DELETE SET NULL,
		flag BOOLEAN DEFAULT (0),
		UNIQUE (body, author_id) ON CONFLICT IGNORE
	) WITHOUT ROWID`)

	notes := s.Tables[0]
	assert.Equal(t, "notes", notes.Name)
	assert.Equal(t, []string{"id"}, notes.PrimaryKey)
	assert.True(t, notes.Column("id").AutoIncrement)
	assert.True(t, notes.Column("body").NotNull)
	assert.False(t, notes.Column("body").Unique)
	assert.Equal(t, "(0)", defaultOf(notes.Column("flag")))

	require.Len(t, notes.ForeignKeys, 1)
	fk := notes.ForeignKeys[0]
	assert.Equal(t, "notes_author_fk", fk.Name)
	assert.Equal(t, []string{"author_id"}, fk.OriginColumns)
	assert.Equal(t, "SET NULL", fk.OnDelete)
}

func TestRecognizeSQLServerAndGenerated(t *testing.T) {
	s := recognize(t,
		`CREATE TABLE [dbo].[Items] ([Id] INT IDENTITY(1,1) NOT NULL, [Name] NVARCHAR(50) NULL, CONSTRAINT [PK_Items] PRIMARY KEY CLUSTERED ([Id] ASC))`,
		`CREATE TABLE g (id bigint GENERATED ALWAYS AS IDENTITY (START WITH 1), price numeric(10,2), qty int, total numeric GENERATED ALWAYS AS (price * qty) STORED)`,
	)

	items := s.Tables[0]
	assert.Equal(t, "Items", items.Name)
	assert.Equal(t, []string{"Id", "Name"}, items.ColumnNames())
	assert.Equal(t, []string{"Id"}, items.PrimaryKey)
	assert.True(t, items.Column("Id").AutoIncrement)
	assert.Equal(t, "NVARCHAR", items.Column("Name").Type)

	g := s.Tables[1]
	assert.Equal(t, []string{"id", "price", "qty", "total"}, g.ColumnNames())
	assert.True(t, g.Column("id").AutoIncrement)
	assert.Equal(t, "numeric", g.Column("total").Type)
}

func TestRecognizeErrors(t *testing.T) {
	tests := []struct {
		name       string
		prepare    []string
		statement  string
		wantKind   Kind
		wantLine   int
		wantColumn int
		wantNear   string
	}{
		{
			name:       "empty element",
			statement:  "CREATE TABLE broken (id int,, name text)",
			wantKind:   KindGrammarMismatch,
			wantLine:   1,
			wantColumn: 28,
			wantNear:   ",",
		},
		{
			name:       "not a table statement",
			statement:  "DROP TABLE t",
			wantKind:   KindGrammarMismatch,
			wantLine:   1,
			wantColumn: 0,
			wantNear:   "DROP",
		},
		{
			name:       "check without expression",
			statement:  "CREATE TABLE t (\n  a int,\n  b int CHECK\n)",
			wantKind:   KindGrammarMismatch,
			wantLine:   4,
			wantColumn: 0,
			wantNear:   ")",
		},
		{
			name:       "missing closing parenthesis",
			statement:  "CREATE TABLE t (a int",
			wantKind:   KindGrammarMismatch,
			wantLine:   1,
			wantColumn: 21,
			wantNear:   "",
		},
		{
			name:       "create table as select",
			statement:  "CREATE TABLE t AS SELECT 1",
			wantKind:   KindGrammarMismatch,
			wantLine:   1,
			wantColumn: 15,
			wantNear:   "AS",
		},
		{
			name:       "unbalanced table options",
			statement:  "CREATE TABLE g (a int) garbage (",
			wantKind:   KindGrammarMismatch,
			wantLine:   1,
			wantColumn: 31,
			wantNear:   "(",
		},
		{
			name:       "extra closing parenthesis",
			statement:  "CREATE TABLE g (a int))",
			wantKind:   KindGrammarMismatch,
			wantLine:   1,
			wantColumn: 22,
			wantNear:   ")",
		},
		{
			name:       "unresolved alter target",
			statement:  "ALTER TABLE missing ADD CONSTRAINT pk PRIMARY KEY (id)",
			wantKind:   KindUnresolvedAlterTarget,
			wantLine:   1,
			wantColumn: 12,
			wantNear:   "missing",
		},
		{
			name:       "alter table add column",
			prepare:    []string{"CREATE TABLE t (a int)"},
			statement:  "ALTER TABLE t ADD COLUMN b int",
			wantKind:   KindGrammarMismatch,
			wantLine:   1,
			wantColumn: 18,
			wantNear:   "COLUMN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := recognize(t, tt.prepare...)
			err := NewRecognizer(s).Recognize(tt.statement)

			var serr *SyntaxError
			require.True(t, errors.As(err, &serr), "expected *SyntaxError, got %v", err)
			assert.Equal(t, tt.wantKind, serr.Kind)
			assert.Equal(t, tt.wantLine, serr.Line)
			assert.Equal(t, tt.wantColumn, serr.Column)
			assert.Equal(t, tt.wantNear, serr.Near)
		})
	}
}

func TestRecognizeKeepsCommittedPart(t *testing.T) {
	s := schema.New()
	r := NewRecognizer(s)

	err := r.Recognize("CREATE TABLE t (a int PRIMARY KEY, b int REFERENCES)")
	require.Error(t, err)

	require.Len(t, s.Tables, 1)
	table := s.Tables[0]
	assert.Equal(t, []string{"a"}, table.ColumnNames())
	assert.Equal(t, []string{"a"}, table.PrimaryKey)
	assert.Empty(t, table.ForeignKeys)

	// the next statement is unaffected
	require.NoError(t, r.Recognize("CREATE TABLE u (x int)"))
	assert.Equal(t, []string{"t", "u"}, s.TableNames())
}

func TestRecognizeCreateTableAsLeavesSchemaUntouched(t *testing.T) {
	s := schema.New()
	err := NewRecognizer(s).Recognize("CREATE TABLE copy AS SELECT * FROM films")
	require.Error(t, err)
	assert.Empty(t, s.Tables)
}

func TestSyntaxErrorMessage(t *testing.T) {
	err := &SyntaxError{Line: 3, Column: 4, Near: "x", Message: "boom"}
	assert.Equal(t, `line 3:4 near "x": boom`, err.Error())

	eof := &SyntaxError{Line: 1, Column: 9, Message: "expected \")\""}
	assert.Equal(t, `line 1:9 near "<EOF>": expected ")"`, eof.Error())
}
