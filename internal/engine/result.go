// Package engine executes untrusted query fragments against an authorized
// view and normalizes whatever comes back into one tagged result shape.
package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"shiplens/internal/dataset"
)

// MaxRows caps every emitted table.
const MaxRows = 500

// ResultKind tags the normalized shape of an execution result.
type ResultKind int

const (
	KindNone ResultKind = iota
	KindScalar
	KindKeyValue
	KindTable
)

// KV is one label→value pair of a KeyValue result.
type KV struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Table is the canonical tabular shape: ordered columns and name→value rows.
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Result is the tagged variant produced by both engines. Exactly one of the
// payload fields is populated according to Kind. All values are
// transport-safe: times rendered as strings, NaN as nil, containers
// sanitized recursively.
type Result struct {
	Kind   ResultKind
	Scalar any
	Pairs  []KV
	Table  *Table
}

// Execution is the outcome of running one fragment.
type Execution struct {
	OK       bool
	Err      error  // *ValidationError or *ExecutionError when !OK
	Output   string // captured stdout (script engine only)
	Result   Result
	RowCount int    // rows in the authorized scope, when applicable
	Preview  string // human-readable filtered preview (script engine only)
}

// Failed builds a failed execution.
func Failed(err error) *Execution { return &Execution{OK: false, Err: err} }

// Normalize reduces any engine output value to a Result. Frames become
// tables, maps become key/value pairs, slices become tables or value lists,
// everything else is a scalar.
func Normalize(v any) Result {
	switch t := v.(type) {
	case nil:
		return Result{Kind: KindNone}
	case *dataset.Frame:
		return Result{Kind: KindTable, Table: frameTable(t)}
	case map[string]any:
		return Result{Kind: KindKeyValue, Pairs: sortedPairs(t)}
	case []map[string]any:
		return Result{Kind: KindTable, Table: mapsTable(t)}
	case []any:
		return normalizeSlice(t)
	case []string:
		anyVals := make([]any, len(t))
		for i, s := range t {
			anyVals[i] = s
		}
		return normalizeSlice(anyVals)
	case []float64:
		anyVals := make([]any, len(t))
		for i, f := range t {
			anyVals[i] = f
		}
		return normalizeSlice(anyVals)
	default:
		return Result{Kind: KindScalar, Scalar: Sanitize(v)}
	}
}

func normalizeSlice(vals []any) Result {
	if len(vals) == 0 {
		return Result{Kind: KindNone}
	}
	if _, ok := vals[0].(map[string]any); ok {
		maps := make([]map[string]any, 0, len(vals))
		for _, v := range vals {
			if m, ok := v.(map[string]any); ok {
				maps = append(maps, m)
			}
		}
		return Result{Kind: KindTable, Table: mapsTable(maps)}
	}
	rows := make([]map[string]any, 0, len(vals))
	for _, v := range vals {
		rows = append(rows, map[string]any{"value": Sanitize(v)})
		if len(rows) == MaxRows {
			break
		}
	}
	return Result{Kind: KindTable, Table: &Table{Columns: []string{"value"}, Rows: rows}}
}

func frameTable(f *dataset.Frame) *Table {
	capped := f.Head(MaxRows)
	cols := capped.Columns()
	rows := make([]map[string]any, capped.Count())
	for i := 0; i < capped.Count(); i++ {
		row := make(map[string]any, len(cols))
		for _, c := range cols {
			row[c] = Sanitize(capped.At(i, c))
		}
		rows[i] = row
	}
	return &Table{Columns: cols, Rows: rows}
}

func mapsTable(maps []map[string]any) *Table {
	var cols []string
	seen := make(map[string]bool)
	for _, m := range maps {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	rows := make([]map[string]any, 0, len(maps))
	for _, m := range maps {
		row := make(map[string]any, len(cols))
		for _, c := range cols {
			row[c] = Sanitize(m[c])
		}
		rows = append(rows, row)
		if len(rows) == MaxRows {
			break
		}
	}
	return &Table{Columns: cols, Rows: rows}
}

func sortedPairs(m map[string]any) []KV {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]KV, len(keys))
	for i, k := range keys {
		pairs[i] = KV{Key: k, Value: Sanitize(m[k])}
	}
	return pairs
}

// RenderFrameText renders a frame as pipe-delimited text, capped at MaxRows.
// Used for prompt samples and previews.
func RenderFrameText(f *dataset.Frame) string {
	if f == nil || f.IsEmpty() {
		return ""
	}
	return renderTableText(frameTable(f))
}

// Sanitize converts a value to transport-safe primitives: temporal values to
// strings, NaN and infinities to nil, containers recursed.
func Sanitize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case time.Duration:
		return t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		return Sanitize(float64(t))
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case bool, string:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Sanitize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Sanitize(item)
		}
		return out
	default:
		return fmt.Sprint(t)
	}
}

// RenderText renders a result for the answer body: tables as aligned pipe
// text, pairs as "key: value" lines, scalars verbatim.
func (r Result) RenderText() string {
	switch r.Kind {
	case KindTable:
		return renderTableText(r.Table)
	case KindKeyValue:
		var b strings.Builder
		for _, kv := range r.Pairs {
			fmt.Fprintf(&b, "%s: %s\n", kv.Key, dataset.CellString(kv.Value))
		}
		return strings.TrimRight(b.String(), "\n")
	case KindScalar:
		return dataset.CellString(r.Scalar)
	default:
		return ""
	}
}

func renderTableText(t *Table) string {
	if t == nil || len(t.Columns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(t.Columns, " | ") + " |\n")
	sep := make([]string, len(t.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cells[i] = dataset.CellString(row[c])
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
