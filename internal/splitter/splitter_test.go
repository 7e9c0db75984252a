package splitter

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(statements []Statement) []string {
	var out []string
	for _, s := range statements {
		out = append(out, s.Text)
	}
	return out
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "two statements",
			script: "CREATE TABLE a (x int);\nCREATE TABLE b (y int);",
			want:   []string{"CREATE TABLE a (x int)", "CREATE TABLE b (y int)"},
		},
		{
			name:   "leading comments are skipped",
			script: "-- header; comment\n/* block; */\nSELECT 1;",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "semicolon in line comment",
			script: "CREATE TABLE a ( -- note; here\n x int);",
			want:   []string{"CREATE TABLE a ( -- note; here\n x int)"},
		},
		{
			name:   "semicolon in block comment and missing final terminator",
			script: "CREATE TABLE a (/* ; */ x int);CREATE TABLE b (y int)",
			want:   []string{"CREATE TABLE a (/* ; */ x int)", "CREATE TABLE b (y int)"},
		},
		{
			name:   "quoted identifier with terminator and comment markers",
			script: `CREATE TABLE "a;--/*" (x int); SELECT 1;`,
			want:   []string{`CREATE TABLE "a;--/*" (x int)`, "SELECT 1"},
		},
		{
			name:   "string literal with terminator",
			script: "INSERT INTO t VALUES ('a;b'); SELECT 2;",
			want:   []string{"INSERT INTO t VALUES ('a;b')", "SELECT 2"},
		},
		{
			name:   "escaped quote does not close quoted text",
			script: `SELECT "a\"; b"; SELECT 2`,
			want:   []string{`SELECT "a\"; b"`, "SELECT 2"},
		},
		{
			name:   "backslash at the end of a string literal",
			script: `INSERT INTO p VALUES ('C:\'); CREATE TABLE x (a int);`,
			want:   []string{`INSERT INTO p VALUES ('C:\')`, "CREATE TABLE x (a int)"},
		},
		{
			name:   "doubled quote inside a string literal",
			script: "INSERT INTO t VALUES ('it''s; fine'); SELECT 2;",
			want:   []string{"INSERT INTO t VALUES ('it''s; fine')", "SELECT 2"},
		},
		{
			name:   "no letters after the last terminator",
			script: "SELECT 1; ;; -- end\n",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "line comment at end of text",
			script: "CREATE TABLE a (x int) -- end",
			want:   []string{"CREATE TABLE a (x int) -- end"},
		},
		{
			name:   "punctuation before the first keyword",
			script: "\n\t(( ;\nDROP TABLE x;",
			want:   []string{"DROP TABLE x"},
		},
		{
			name:   "empty script",
			script: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statements, err := Split(tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, texts(statements))
		})
	}
}

func TestSplitBoundaryAnomaly(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		want     []string
		wantMode string
		wantLine int
	}{
		{
			name:     "unterminated block comment truncates the last statement",
			script:   "CREATE TABLE a (x int);\nCREATE TABLE b /* oops",
			want:     []string{"CREATE TABLE a (x int)"},
			wantMode: "block comment",
			wantLine: 2,
		},
		{
			name:     "unterminated quoted text",
			script:   `SELECT "abc`,
			want:     nil,
			wantMode: "quoted text",
			wantLine: 1,
		},
		{
			name:     "unterminated string literal",
			script:   "SELECT 1;\n\nINSERT INTO t VALUES ('abc);",
			want:     []string{"SELECT 1"},
			wantMode: "string literal",
			wantLine: 3,
		},
		{
			name:     "unterminated comment between statements",
			script:   "SELECT 1; /* trailing",
			want:     []string{"SELECT 1"},
			wantMode: "block comment",
			wantLine: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statements, err := Split(tt.script)
			assert.Equal(t, tt.want, texts(statements))

			var boundary *BoundaryError
			require.True(t, errors.As(err, &boundary), "expected *BoundaryError, got %v", err)
			assert.Equal(t, tt.wantMode, boundary.Mode)
			assert.Equal(t, tt.wantLine, boundary.Line)
		})
	}
}

func TestScannerPositions(t *testing.T) {
	script := "-- comment\n\nCREATE TABLE a (x int);\n  CREATE TABLE b (\n y int);"

	statements, err := Split(script)
	require.NoError(t, err)
	require.Len(t, statements, 2)

	assert.Equal(t, 3, statements[0].Line)
	assert.Equal(t, strings.Index(script, "CREATE TABLE a"), statements[0].Offset)
	assert.Equal(t, 4, statements[1].Line)
	assert.Equal(t, strings.Index(script, "CREATE TABLE b"), statements[1].Offset)
}

func TestScannerIsRestartable(t *testing.T) {
	s := NewScanner("SELECT 1; SELECT 2; SELECT 3")

	first, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", first.Text)

	s.Reset()

	var all []string
	for {
		stmt, ok := s.Next()
		if !ok {
			break
		}
		all = append(all, stmt.Text)
	}
	assert.Equal(t, []string{"SELECT 1", "SELECT 2", "SELECT 3"}, all)

	// Exhausted scanners stay exhausted
	_, ok = s.Next()
	assert.False(t, ok)
	assert.NoError(t, s.Err())
}

func TestSplitFixture(t *testing.T) {
	data, err := os.ReadFile("testdata/mixed.sql")
	require.NoError(t, err)

	statements, err := Split(string(data))
	require.NoError(t, err)
	require.Len(t, statements, 5)

	assert.True(t, strings.HasPrefix(statements[0].Text, "SET client_encoding"))
	assert.Equal(t, 4, statements[0].Line)
	assert.Contains(t, statements[1].Text, "DEFAULT 'a;b' /* another ; */")
	assert.Contains(t, statements[2].Text, "'it''s; fine'")
	assert.True(t, strings.HasPrefix(statements[4].Text, "ALTER TABLE child"))
}

func TestSplitIsIdempotent(t *testing.T) {
	data, err := os.ReadFile("testdata/mixed.sql")
	require.NoError(t, err)

	first, err := Split(string(data))
	require.NoError(t, err)

	rejoined := strings.Join(texts(first), ";")
	second, err := Split(rejoined)
	require.NoError(t, err)

	assert.Equal(t, len(first), len(second))
	assert.Equal(t, texts(first), texts(second))
}

func TestFilters(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		create    bool
		widened   bool
	}{
		{name: "create table", statement: "CREATE TABLE t (a int)", create: true, widened: true},
		{name: "lowercase create table", statement: "create table t (a int)", create: true, widened: true},
		{name: "alter table add constraint", statement: "ALTER TABLE t ADD CONSTRAINT pk PRIMARY KEY (a)", create: false, widened: true},
		{name: "alter table add column", statement: "ALTER TABLE t ADD COLUMN b int", create: false, widened: false},
		{name: "select", statement: "SELECT log AS x FROM t1 GROUP BY x", create: false, widened: false},
		{name: "create index", statement: "CREATE INDEX i ON t (a)", create: false, widened: false},
	}

	widened := FilterFor(true)
	narrow := FilterFor(false)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.create, narrow(tt.statement))
			assert.Equal(t, tt.widened, widened(tt.statement))
		})
	}
}

func TestFilterFixture(t *testing.T) {
	data, err := os.ReadFile("testdata/mixed.sql")
	require.NoError(t, err)

	statements, err := Split(string(data))
	require.NoError(t, err)

	count := func(f Filter) int {
		n := 0
		for _, s := range statements {
			if f(s.Text) {
				n++
			}
		}
		return n
	}

	assert.Equal(t, 2, count(CreateTableOnly))
	assert.Equal(t, 3, count(FilterFor(true)))
}
