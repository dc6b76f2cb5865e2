package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTableSpecFromTable(t *testing.T) {
	res := Result{Kind: KindTable, Table: &Table{
		Columns: []string{"port", "count"},
		Rows:    []map[string]any{{"port": "LA", "count": 2.0}},
	}}
	spec := BuildTableSpec(res)

	require.NotNil(t, spec)
	assert.Equal(t, []string{"port", "count"}, spec.Columns)
	assert.Equal(t, defaultTableTitle, spec.Title)
}

func TestBuildTableSpecFromPairs(t *testing.T) {
	res := Result{Kind: KindKeyValue, Pairs: []KV{
		{Key: "delayed", Value: 4.0},
		{Key: "on_time", Value: 12.0},
	}}
	spec := BuildTableSpec(res)

	require.NotNil(t, spec)
	assert.Equal(t, []string{"label", "value"}, spec.Columns)
	require.Len(t, spec.Rows, 2)
	assert.Equal(t, "delayed", spec.Rows[0]["label"])
}

func TestBuildTableSpecNilCases(t *testing.T) {
	assert.Nil(t, BuildTableSpec(Result{Kind: KindScalar, Scalar: 3.0}))
	assert.Nil(t, BuildTableSpec(Result{Kind: KindNone}))
	assert.Nil(t, BuildTableSpec(Result{Kind: KindTable, Table: &Table{Columns: []string{"a"}}}))
}

func TestBuildTableSpecCapsRows(t *testing.T) {
	rows := make([]map[string]any, MaxRows+25)
	for i := range rows {
		rows[i] = map[string]any{"n": float64(i)}
	}
	spec := BuildTableSpec(Result{Kind: KindTable, Table: &Table{Columns: []string{"n"}, Rows: rows}})

	require.NotNil(t, spec)
	assert.Len(t, spec.Rows, MaxRows)
}

func TestTableSpecRenderText(t *testing.T) {
	spec := &TableSpec{
		Columns: []string{"port", "count"},
		Rows:    []map[string]any{{"port": "LA", "count": 2.0}},
	}
	text := spec.RenderText()
	assert.Contains(t, text, "| port | count |")
	assert.Contains(t, text, "| LA | 2 |")

	var nilSpec *TableSpec
	assert.Equal(t, "", nilSpec.RenderText())
}
