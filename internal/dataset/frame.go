// Package dataset provides the immutable in-memory table shared between the
// cache manager, the authorization filter, and both execution engines.
// Frames are never mutated after construction: every operation returns a new
// frame, so published snapshots can be read concurrently without locks.
package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"shiplens/internal/schema"
)

// Frame is a typed, column-ordered table. Cell values are one of
// nil, float64, time.Time, string or []string, matching schema.Kind.
type Frame struct {
	cols  []schema.Column
	index map[string]int
	rows  [][]any
}

// Row is a read-only accessor over one frame row, used by filter predicates
// and by script fragments running inside the embedded interpreter.
type Row struct {
	f *Frame
	i int
}

// New constructs a frame from columns and row data. Rows shorter than the
// column set are padded with nils; longer rows are truncated.
func New(cols []schema.Column, rows [][]any) *Frame {
	f := &Frame{
		cols:  append([]schema.Column(nil), cols...),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range f.cols {
		f.index[c.Name] = i
	}
	f.rows = make([][]any, len(rows))
	for i, src := range rows {
		row := make([]any, len(f.cols))
		copy(row, src)
		f.rows[i] = row
	}
	return f
}

// Empty returns a frame with the given columns and no rows.
func Empty(cols []schema.Column) *Frame { return New(cols, nil) }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// ColumnDefs returns a copy of the column metadata.
func (f *Frame) ColumnDefs() []schema.Column {
	return append([]schema.Column(nil), f.cols...)
}

// Kind returns the declared kind of a column, defaulting to text.
func (f *Frame) Kind(name string) schema.Kind {
	if i, ok := f.index[name]; ok {
		return f.cols[i].Kind
	}
	return schema.Text
}

// HasColumn reports whether the frame carries the named column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Count returns the number of rows.
func (f *Frame) Count() int { return len(f.rows) }

// IsEmpty reports whether the frame has no rows.
func (f *Frame) IsEmpty() bool { return len(f.rows) == 0 }

// At returns the raw cell value at row i, column name.
func (f *Frame) At(i int, name string) any {
	ci, ok := f.index[name]
	if !ok || i < 0 || i >= len(f.rows) {
		return nil
	}
	return f.rows[i][ci]
}

// Row returns the accessor for row i.
func (f *Frame) Row(i int) Row { return Row{f: f, i: i} }

// Clone returns a deep copy. List cells are copied so a clone holder can
// never reach into the original's storage.
func (f *Frame) Clone() *Frame {
	rows := make([][]any, len(f.rows))
	for i, src := range f.rows {
		row := make([]any, len(src))
		for j, v := range src {
			if list, ok := v.([]string); ok {
				row[j] = append([]string(nil), list...)
				continue
			}
			row[j] = v
		}
		rows[i] = row
	}
	return New(f.cols, rows)
}

// Filter returns a new frame holding the rows for which pred returns true.
func (f *Frame) Filter(pred func(Row) bool) *Frame {
	var rows [][]any
	for i := range f.rows {
		if pred(Row{f: f, i: i}) {
			rows = append(rows, f.rows[i])
		}
	}
	return New(f.cols, rows)
}

// Head returns the first n rows (all rows when n exceeds the count).
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n > len(f.rows) {
		n = len(f.rows)
	}
	return New(f.cols, f.rows[:n])
}

// Select returns a new frame restricted to the named columns, in the given
// order. Unknown names are skipped.
func (f *Frame) Select(names ...string) *Frame {
	var cols []schema.Column
	var src []int
	for _, name := range names {
		if i, ok := f.index[name]; ok {
			cols = append(cols, f.cols[i])
			src = append(src, i)
		}
	}
	rows := make([][]any, len(f.rows))
	for i, row := range f.rows {
		out := make([]any, len(src))
		for j, ci := range src {
			out[j] = row[ci]
		}
		rows[i] = out
	}
	return New(cols, rows)
}

// SortByDesc returns a new frame stably sorted by the named column,
// descending, with nil cells last.
func (f *Frame) SortByDesc(name string) *Frame {
	ci, ok := f.index[name]
	if !ok {
		return New(f.cols, f.rows)
	}
	order := make([]int, len(f.rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return less(f.rows[order[b]][ci], f.rows[order[a]][ci])
	})
	rows := make([][]any, len(f.rows))
	for i, src := range order {
		rows[i] = f.rows[src]
	}
	return New(f.cols, rows)
}

// less treats nil as smaller than any value, so descending sorts put
// missing cells last.
func less(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Before(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// Distinct returns the distinct non-nil values of a column in first-seen
// order.
func (f *Frame) Distinct(name string) []any {
	ci, ok := f.index[name]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []any
	for _, row := range f.rows {
		v := row[ci]
		if v == nil {
			continue
		}
		key := fmt.Sprint(v)
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}

// Col returns all values of a column.
func (f *Frame) Col(name string) []any {
	ci, ok := f.index[name]
	if !ok {
		return nil
	}
	out := make([]any, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[ci]
	}
	return out
}

// Sum totals the numeric values of a column, skipping non-numeric cells.
func (f *Frame) Sum(name string) float64 {
	var total float64
	for _, v := range f.Col(name) {
		if n, ok := asNumber(v); ok {
			total += n
		}
	}
	return total
}

// Mean averages the numeric values of a column; 0 when none are numeric.
func (f *Frame) Mean(name string) float64 {
	var total float64
	var n int
	for _, v := range f.Col(name) {
		if num, ok := asNumber(v); ok {
			total += num
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// Min returns the smallest numeric value of a column and whether one exists.
func (f *Frame) Min(name string) (float64, bool) {
	var best float64
	found := false
	for _, v := range f.Col(name) {
		if n, ok := asNumber(v); ok {
			if !found || n < best {
				best = n
			}
			found = true
		}
	}
	return best, found
}

// Max returns the largest numeric value of a column and whether one exists.
func (f *Frame) Max(name string) (float64, bool) {
	var best float64
	found := false
	for _, v := range f.Col(name) {
		if n, ok := asNumber(v); ok {
			if !found || n > best {
				best = n
			}
			found = true
		}
	}
	return best, found
}

// GroupCount returns a two-column frame {name, count} with one row per
// distinct value, ordered by count descending.
func (f *Frame) GroupCount(name string) *Frame {
	counts := make(map[string]float64)
	var order []string
	ci, ok := f.index[name]
	if !ok {
		return Empty([]schema.Column{{Name: name}, {Name: "count", Kind: schema.Numeric}})
	}
	for _, row := range f.rows {
		v := row[ci]
		if v == nil {
			continue
		}
		key := cellString(v)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	rows := make([][]any, len(order))
	for i, key := range order {
		rows[i] = []any{key, counts[key]}
	}
	return New([]schema.Column{{Name: name}, {Name: "count", Kind: schema.Numeric}}, rows)
}

// GroupSum returns a two-column frame {group, sum of value}, ordered by the
// summed value descending.
func (f *Frame) GroupSum(group, value string) *Frame {
	gi, ok := f.index[group]
	vi, ok2 := f.index[value]
	outCols := []schema.Column{{Name: group}, {Name: value, Kind: schema.Numeric}}
	if !ok || !ok2 {
		return Empty(outCols)
	}
	sums := make(map[string]float64)
	var order []string
	for _, row := range f.rows {
		g := row[gi]
		if g == nil {
			continue
		}
		key := cellString(g)
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		if n, okn := asNumber(row[vi]); okn {
			sums[key] += n
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return sums[order[a]] > sums[order[b]] })
	rows := make([][]any, len(order))
	for i, key := range order {
		rows[i] = []any{key, sums[key]}
	}
	return New(outCols, rows)
}

// Records returns the rows as ordered column→value maps. Values are copies
// for list cells.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, len(f.rows))
	for i, row := range f.rows {
		rec := make(map[string]any, len(f.cols))
		for j, c := range f.cols {
			v := row[j]
			if list, ok := v.([]string); ok {
				v = append([]string(nil), list...)
			}
			rec[c.Name] = v
		}
		out[i] = rec
	}
	return out
}

// Str returns the cell as a string ("" for nil).
func (r Row) Str(name string) string {
	v := r.f.At(r.i, name)
	if v == nil {
		return ""
	}
	return cellString(v)
}

// Num returns the cell as a float64 and whether it was numeric.
func (r Row) Num(name string) (float64, bool) {
	return asNumber(r.f.At(r.i, name))
}

// Time returns the cell as a time.Time and whether it was a datetime.
func (r Row) Time(name string) (time.Time, bool) {
	if t, ok := r.f.At(r.i, name).(time.Time); ok {
		return t, true
	}
	return time.Time{}, false
}

// List returns the cell as a string list (nil when absent).
func (r Row) List(name string) []string {
	if l, ok := r.f.At(r.i, name).([]string); ok {
		return l
	}
	return nil
}

// IsNull reports whether the cell is missing.
func (r Row) IsNull(name string) bool {
	return r.f.At(r.i, name) == nil
}

// asNumber coerces numeric cells and numeric-looking strings.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		raw := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if raw == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// cellString renders a cell for grouping and display.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []string:
		return strings.Join(t, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// CellString is the exported display renderer shared with the engines.
func CellString(v any) string { return cellString(v) }

// SortLatestFirst sorts by the first date-priority column present in the
// frame, descending, leaving the frame untouched when none is found.
func SortLatestFirst(f *Frame) *Frame {
	if f.IsEmpty() {
		return f
	}
	for _, name := range schema.DatePriority {
		if !f.HasColumn(name) {
			continue
		}
		if f.Kind(name) == schema.DateTime {
			return f.SortByDesc(name)
		}
		// Text column that may carry parseable dates.
		parsed := 0
		for _, v := range f.Col(name) {
			if s, ok := v.(string); ok {
				if _, err := time.Parse("2006-01-02", firstDateToken(s)); err == nil {
					parsed++
				}
			}
		}
		if parsed > 0 {
			return f.SortByDesc(name)
		}
	}
	return f
}

func firstDateToken(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}
