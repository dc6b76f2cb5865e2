package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiplens/internal/dataset"
	"shiplens/internal/schema"
)

func testView() *dataset.Frame {
	d := func(day int) time.Time {
		return time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC)
	}
	cols := []schema.Column{
		{Name: "container_number", Kind: schema.Text},
		{Name: "discharge_port", Kind: schema.Text},
		{Name: "teus", Kind: schema.Numeric},
		{Name: "best_eta_dp_date", Kind: schema.DateTime},
	}
	return dataset.New(cols, [][]any{
		{"C1", "LOS ANGELES", 2.0, d(20)},
		{"C2", "SEATTLE", 4.0, d(10)},
		{"C3", "LOS ANGELES", 1.0, d(15)},
	})
}

func emptyView() *dataset.Frame {
	return dataset.Empty([]schema.Column{{Name: "container_number", Kind: schema.Text}})
}

func TestScriptEngineScalarResult(t *testing.T) {
	eng := NewScriptEngine(0, nil)
	exec := eng.Execute(t.Context(), testView(), `result := df.Count()`)

	require.True(t, exec.OK, "err: %v", exec.Err)
	assert.Equal(t, KindScalar, exec.Result.Kind)
	assert.Equal(t, float64(3), exec.Result.Scalar)
	assert.Equal(t, 3, exec.RowCount)
}

func TestScriptEngineFrameResult(t *testing.T) {
	eng := NewScriptEngine(0, nil)
	exec := eng.Execute(t.Context(), testView(), `result := df.GroupCount("discharge_port")`)

	require.True(t, exec.OK, "err: %v", exec.Err)
	require.Equal(t, KindTable, exec.Result.Kind)
	require.Len(t, exec.Result.Table.Rows, 2)
	assert.Equal(t, "LOS ANGELES", exec.Result.Table.Rows[0]["discharge_port"])
	assert.Equal(t, 2.0, exec.Result.Table.Rows[0]["count"])
}

func TestScriptEngineStdoutFallback(t *testing.T) {
	eng := NewScriptEngine(0, nil)
	fragment := `
import "fmt"
fmt.Println("total teus:", df.Sum("teus"))
`
	exec := eng.Execute(t.Context(), testView(), fragment)

	require.True(t, exec.OK, "err: %v", exec.Err)
	assert.Equal(t, KindScalar, exec.Result.Kind)
	assert.Equal(t, "total teus: 7", exec.Result.Scalar)
}

func TestScriptEngineFilteredPreview(t *testing.T) {
	eng := NewScriptEngine(0, nil)
	fragment := `
filtered := df.Filter(func(r data.Row) bool { return r.Str("discharge_port") == "LOS ANGELES" })
result := filtered.Count()
`
	exec := eng.Execute(t.Context(), testView(), fragment)

	require.True(t, exec.OK, "err: %v", exec.Err)
	assert.Equal(t, float64(2), exec.Result.Scalar)
	require.NotEmpty(t, exec.Preview)
	assert.Contains(t, exec.Preview, "container_number")
	assert.Contains(t, exec.Preview, "C1")
	assert.NotContains(t, exec.Preview, "C2")
}

func TestScriptEngineRuntimeFailure(t *testing.T) {
	eng := NewScriptEngine(0, nil)
	exec := eng.Execute(t.Context(), testView(), `result := undefinedSymbol()`)

	require.False(t, exec.OK)
	var xerr *ExecutionError
	require.ErrorAs(t, exec.Err, &xerr)
	assert.Equal(t, "script", xerr.Engine)
}

func TestScriptEngineTimeout(t *testing.T) {
	eng := NewScriptEngine(50*time.Millisecond, nil)
	fragment := `
import "time"
time.Sleep(5 * time.Second)
result := 1
`
	exec := eng.Execute(t.Context(), testView(), fragment)

	require.False(t, exec.OK)
	assert.Contains(t, exec.Err.Error(), "timed out")
}

func TestScriptEngineEmptyViewStaysUsable(t *testing.T) {
	eng := NewScriptEngine(0, nil)
	exec := eng.Execute(t.Context(), emptyView(), `result := df.Count()`)

	require.True(t, exec.OK, "err: %v", exec.Err)
	assert.Equal(t, float64(0), exec.Result.Scalar)
}
