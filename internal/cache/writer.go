package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shiplens/internal/schema"
)

// WriteSnapshot creates a snapshot database at path containing the given
// rows. Cells may be string, float64, int, time.Time, []string or nil; they
// are stored in the canonical text/real encoding the loader reads back. Used
// by test mode and fixtures.
func WriteSnapshot(path string, reg *schema.Registry, rows []map[string]any) error {
	if reg == nil {
		reg = schema.Default()
	}

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return fmt.Errorf("open snapshot for write: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	names := reg.Names()
	decls := make([]string, len(names))
	quoted := make([]string, len(names))
	holders := make([]string, len(names))
	kinds := reg.Kinds()
	for i, name := range names {
		typ := "TEXT"
		if kinds[name] == schema.Numeric {
			typ = "REAL"
		}
		decls[i] = fmt.Sprintf("%q %s", name, typ)
		quoted[i] = fmt.Sprintf("%q", name)
		holders[i] = "?"
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", SnapshotTable, strings.Join(decls, ", "))); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot write: %w", err)
	}
	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %q (%s) VALUES (%s)",
		SnapshotTable, strings.Join(quoted, ", "), strings.Join(holders, ", ")))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare snapshot write: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(names))
	for i, row := range rows {
		for j, name := range names {
			args[j] = storeValue(row[name])
		}
		if _, err := stmt.Exec(args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("write snapshot row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func storeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case []string:
		data, err := json.Marshal(t)
		if err != nil {
			return strings.Join(t, ",")
		}
		return string(data)
	default:
		return t
	}
}
