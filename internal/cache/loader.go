package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shiplens/internal/dataset"
	"shiplens/internal/schema"
)

// SnapshotTable is the table inside the snapshot database file.
const SnapshotTable = "shipments"

// dateLayouts are tried in order when coercing datetime columns.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// loadSnapshot parses the on-disk snapshot into a frame: columns are pruned
// to the registered set plus the authorization column, numeric columns are
// cast to float64 and datetime columns to time.Time, with unparsable values
// becoming nil.
func loadSnapshot(ctx context.Context, path string, reg *schema.Registry) (*dataset.Frame, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	available, err := tableColumns(ctx, db)
	if err != nil {
		return nil, err
	}
	kept := reg.Prune(available)
	if len(kept) == 0 {
		return nil, fmt.Errorf("snapshot has no registered columns")
	}

	quoted := make([]string, len(kept))
	cols := make([]schema.Column, len(kept))
	for i, name := range kept {
		quoted[i] = `"` + name + `"`
		cols[i], _ = reg.Lookup(name)
	}

	rows, err := db.QueryContext(ctx, "SELECT "+strings.Join(quoted, ", ")+" FROM "+SnapshotTable)
	if err != nil {
		return nil, fmt.Errorf("read snapshot rows: %w", err)
	}
	defer rows.Close()

	var data [][]any
	raw := make([]any, len(kept))
	ptrs := make([]any, len(kept))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		row := make([]any, len(kept))
		for i, v := range raw {
			row[i] = coerce(v, cols[i].Kind)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return dataset.New(cols, data), nil
}

func tableColumns(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", SnapshotTable)
	if err != nil {
		return nil, fmt.Errorf("read snapshot schema: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("snapshot table %s missing or empty schema", SnapshotTable)
	}
	return names, rows.Err()
}

// coerce applies the registered kind to a raw database value. Unparsable
// numeric and datetime text becomes nil rather than failing the load.
func coerce(v any, kind schema.Kind) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch kind {
	case schema.Numeric:
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil
			}
			return parsed
		default:
			return nil
		}
	case schema.DateTime:
		s, ok := v.(string)
		if !ok {
			return nil
		}
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return nil
	case schema.List:
		s, ok := v.(string)
		if !ok {
			return nil
		}
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return list
		}
		// Plain text degrades to a single-entry list.
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
		return nil
	default:
		switch t := v.(type) {
		case string:
			return t
		case int64:
			return strconv.FormatInt(t, 10)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return fmt.Sprint(t)
		}
	}
}
