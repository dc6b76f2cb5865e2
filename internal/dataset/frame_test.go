package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiplens/internal/schema"
)

func shipCols() []schema.Column {
	return []schema.Column{
		{Name: "container_number", Kind: schema.Text},
		{Name: "discharge_port", Kind: schema.Text},
		{Name: "teus", Kind: schema.Numeric},
		{Name: "best_eta_dp_date", Kind: schema.DateTime},
		{Name: "consignee_codes", Kind: schema.List},
	}
}

func shipFrame(t *testing.T) *Frame {
	t.Helper()
	d := func(day int) time.Time {
		return time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC)
	}
	return New(shipCols(), [][]any{
		{"C1", "LOS ANGELES", 2.0, d(10), []string{"A"}},
		{"C2", "SEATTLE", 4.0, d(20), []string{"A", "B"}},
		{"C3", "LOS ANGELES", 1.0, nil, []string{"B"}},
	})
}

func TestFrameFilterAndSelect(t *testing.T) {
	f := shipFrame(t)

	la := f.Filter(func(r Row) bool { return r.Str("discharge_port") == "LOS ANGELES" })
	assert.Equal(t, 2, la.Count())

	sel := la.Select("container_number", "teus")
	assert.Equal(t, []string{"container_number", "teus"}, sel.Columns())
	assert.Equal(t, "C1", sel.At(0, "container_number"))
}

func TestFrameAggregates(t *testing.T) {
	f := shipFrame(t)

	assert.Equal(t, 7.0, f.Sum("teus"))
	assert.InDelta(t, 7.0/3.0, f.Mean("teus"), 1e-9)

	min, ok := f.Min("teus")
	require.True(t, ok)
	assert.Equal(t, 1.0, min)

	max, ok := f.Max("teus")
	require.True(t, ok)
	assert.Equal(t, 4.0, max)

	counts := f.GroupCount("discharge_port")
	require.Equal(t, 2, counts.Count())
	assert.Equal(t, "LOS ANGELES", counts.At(0, "discharge_port"))
	assert.Equal(t, 2.0, counts.At(0, "count"))
}

func TestFrameGroupSum(t *testing.T) {
	f := shipFrame(t)
	sums := f.GroupSum("discharge_port", "teus")
	require.Equal(t, 2, sums.Count())
	assert.Equal(t, "SEATTLE", sums.At(0, "discharge_port"))
	assert.Equal(t, 4.0, sums.At(0, "teus"))
	assert.Equal(t, 3.0, sums.At(1, "teus"))
}

func TestFrameSortByDescNilsLast(t *testing.T) {
	f := shipFrame(t)
	sorted := f.SortByDesc("best_eta_dp_date")

	assert.Equal(t, "C2", sorted.At(0, "container_number"))
	assert.Equal(t, "C1", sorted.At(1, "container_number"))
	// The row with no date sorts after every dated row.
	assert.Equal(t, "C3", sorted.At(2, "container_number"))
}

func TestSortLatestFirstUsesDatePriority(t *testing.T) {
	f := shipFrame(t)
	sorted := SortLatestFirst(f)
	assert.Equal(t, "C2", sorted.At(0, "container_number"))
}

func TestFrameCloneIsDeep(t *testing.T) {
	f := shipFrame(t)
	clone := f.Clone()

	codes := clone.Row(0).List("consignee_codes")
	require.NotEmpty(t, codes)
	codes[0] = "TAMPERED"

	assert.Equal(t, "A", f.Row(0).List("consignee_codes")[0])
}

func TestFrameNumericCoercion(t *testing.T) {
	f := New([]schema.Column{{Name: "weight", Kind: schema.Numeric}}, [][]any{
		{"12,500.5"},
		{nil},
	})

	n, ok := f.Row(0).Num("weight")
	require.True(t, ok)
	assert.Equal(t, 12500.5, n)
	assert.True(t, f.Row(1).IsNull("weight"))
}

func TestEmptyFrame(t *testing.T) {
	e := Empty(shipCols())
	assert.True(t, e.IsEmpty())
	assert.Equal(t, 0, e.Count())
	assert.Len(t, e.Columns(), 5)
}
