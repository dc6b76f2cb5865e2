package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLEngineScalar(t *testing.T) {
	eng := NewSQLEngine(nil)
	exec := eng.Execute(t.Context(), testView(), "SELECT count(*) FROM df")

	require.True(t, exec.OK, "err: %v", exec.Err)
	assert.Equal(t, KindScalar, exec.Result.Kind)
	assert.Equal(t, float64(3), exec.Result.Scalar)
	assert.Equal(t, 3, exec.RowCount)
}

func TestSQLEngineTable(t *testing.T) {
	eng := NewSQLEngine(nil)
	exec := eng.Execute(t.Context(), testView(),
		`SELECT discharge_port, count(*) AS cnt FROM df GROUP BY discharge_port ORDER BY cnt DESC`)

	require.True(t, exec.OK, "err: %v", exec.Err)
	require.Equal(t, KindTable, exec.Result.Kind)
	require.Equal(t, []string{"discharge_port", "cnt"}, exec.Result.Table.Columns)
	require.Len(t, exec.Result.Table.Rows, 2)
	assert.Equal(t, "LOS ANGELES", exec.Result.Table.Rows[0]["discharge_port"])
	assert.Equal(t, float64(2), exec.Result.Table.Rows[0]["cnt"])
}

func TestSQLEngineDateText(t *testing.T) {
	eng := NewSQLEngine(nil)
	exec := eng.Execute(t.Context(), testView(),
		`SELECT container_number FROM df WHERE date(best_eta_dp_date) > '2026-08-12' ORDER BY best_eta_dp_date DESC`)

	require.True(t, exec.OK, "err: %v", exec.Err)
	require.Equal(t, KindTable, exec.Result.Kind)
	require.Len(t, exec.Result.Table.Rows, 2)
	assert.Equal(t, "C1", exec.Result.Table.Rows[0]["container_number"])
}

func TestSQLEngineQueryFailure(t *testing.T) {
	eng := NewSQLEngine(nil)
	exec := eng.Execute(t.Context(), testView(), "SELECT no_such_column FROM df")

	require.False(t, exec.OK)
	var xerr *ExecutionError
	require.ErrorAs(t, exec.Err, &xerr)
	assert.Equal(t, "sql", xerr.Engine)
}

func TestSQLEngineRejectsWrites(t *testing.T) {
	eng := NewSQLEngine(nil)
	for _, query := range []string{
		"DELETE FROM df",
		"UPDATE df SET teus = 0",
		"DROP TABLE df",
		"INSERT INTO df (container_number) VALUES ('X')",
	} {
		exec := eng.Execute(t.Context(), testView(), query)
		assert.False(t, exec.OK, query)
	}

	// The data is untouched afterwards within the same process.
	exec := eng.Execute(t.Context(), testView(), "SELECT count(*) FROM df")
	require.True(t, exec.OK)
	assert.Equal(t, float64(3), exec.Result.Scalar)
}

func TestSQLEngineEmptyQuery(t *testing.T) {
	eng := NewSQLEngine(nil)
	exec := eng.Execute(t.Context(), testView(), "   ")
	require.False(t, exec.OK)
}

func TestSQLEngineEmptyView(t *testing.T) {
	eng := NewSQLEngine(nil)
	exec := eng.Execute(t.Context(), emptyView(), "SELECT count(*) FROM df")

	require.True(t, exec.OK, "err: %v", exec.Err)
	assert.Equal(t, float64(0), exec.Result.Scalar)
	assert.Equal(t, 0, exec.RowCount)
}
