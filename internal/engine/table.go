package engine

// TableSpec is the display table handed back to the caller, capped at
// MaxRows rows.
type TableSpec struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Title   string           `json:"title"`
}

const defaultTableTitle = "Analytics Result"

// BuildTableSpec derives a display table from a normalized result. Scalars
// yield nil since the answer text already carries them. KeyValue results become
// a label/value table.
func BuildTableSpec(res Result) *TableSpec {
	switch res.Kind {
	case KindTable:
		if res.Table == nil || len(res.Table.Columns) == 0 || len(res.Table.Rows) == 0 {
			return nil
		}
		rows := res.Table.Rows
		if len(rows) > MaxRows {
			rows = rows[:MaxRows]
		}
		return &TableSpec{Columns: res.Table.Columns, Rows: rows, Title: defaultTableTitle}
	case KindKeyValue:
		if len(res.Pairs) == 0 {
			return nil
		}
		rows := make([]map[string]any, 0, len(res.Pairs))
		for _, kv := range res.Pairs {
			rows = append(rows, map[string]any{"label": kv.Key, "value": kv.Value})
			if len(rows) == MaxRows {
				break
			}
		}
		return &TableSpec{Columns: []string{"label", "value"}, Rows: rows, Title: defaultTableTitle}
	default:
		return nil
	}
}

// RenderText renders the table as pipe-delimited text for answer bodies.
func (t *TableSpec) RenderText() string {
	if t == nil {
		return ""
	}
	return renderTableText(&Table{Columns: t.Columns, Rows: t.Rows})
}
