package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/sqlimport/internal/report"
	"github.com/tordrt/sqlimport/internal/schema"
)

func sampleRun(t *testing.T) Run {
	t.Helper()

	table := schema.NewTable("films")
	table.AddColumn(&schema.Column{Name: "code", Type: "char", LogicalType: schema.String, NotNull: true})
	table.AddColumn(&schema.Column{Name: "len", Type: "interval", LogicalType: schema.String})
	table.AddPrimaryKeyColumn("code")
	s := schema.New()
	s.AddTable(table)

	r := report.New()
	ok := "CREATE TABLE films (code char(5) PRIMARY KEY, len interval)"
	bad := "CREATE TABLE broken ("
	r.MarkToParse(ok)
	r.MarkToParse(bad)
	require.NoError(t, r.MarkSuccess(ok))
	require.NoError(t, r.MarkParsingError(bad, `line 1:21 near "<EOF>": expected identifier`))
	r.AddUnknownType("interval")
	r.AddWarning("films: something odd")

	return Run{Source: "import1.sql", Schema: s, Report: r}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSaveAndLoadRun(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	id, err := st.SaveRun(ctx, sampleRun(t))
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	run, err := st.LoadRun(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, run.ID)
	assert.Equal(t, "import1.sql", run.Source)
	assert.False(t, run.CreatedAt.IsZero())

	require.Len(t, run.Document.Entities, 1)
	assert.Equal(t, "films", run.Document.Entities[0].Name)
	assert.Equal(t, []string{"code"}, run.Document.Entities[0].PrimaryKey)
	assert.Len(t, run.Document.Entities[0].Attributes, 2)

	require.Len(t, run.Statements, 2)
	assert.Equal(t, report.StatusSuccess, run.Statements[0].Status)
	assert.Equal(t, report.StatusParsingError, run.Statements[1].Status)
	assert.Contains(t, run.Statements[1].Message, "expected identifier")
	assert.Equal(t, 1, run.Statements[1].Occurrences)

	assert.Equal(t, []string{"interval"}, run.UnknownTypes)
	assert.Equal(t, []string{"films: something odd"}, run.Warnings)
}

func TestRunIDs(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	first, err := st.SaveRun(ctx, sampleRun(t))
	require.NoError(t, err)
	second, err := st.SaveRun(ctx, sampleRun(t))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	ids, err := st.RunIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, ids)
}

func TestLoadRunNotFound(t *testing.T) {
	_, err := openStore(t).LoadRun(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reports.db")

	st, err := Open(ctx, path)
	require.NoError(t, err)
	id, err := st.SaveRun(ctx, sampleRun(t))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	run, err := st.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "import1.sql", run.Source)
}
