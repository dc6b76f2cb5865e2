package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"shiplens/internal/dataset"
	"shiplens/internal/schema"
)

// SQLEngine runs untrusted query text against a session-local table named
// df, materialized from the cached authorized view. Both engines therefore
// enforce row-level authorization at the same point; this surface exposes no
// host-language capability, only the SQL dialect, and the session is forced
// read-only before the untrusted query runs.
type SQLEngine struct {
	logger *zap.Logger
}

// NewSQLEngine builds a SQL engine.
func NewSQLEngine(logger *zap.Logger) *SQLEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLEngine{logger: logger.Named("sql")}
}

// Execute materializes the view and runs the query. Failures are returned as
// a failed Execution, never raised.
func (e *SQLEngine) Execute(ctx context.Context, view *dataset.Frame, query string) *Execution {
	query = strings.TrimSpace(query)
	if query == "" {
		return Failed(&ExecutionError{Engine: "sql", Err: fmt.Errorf("empty query")})
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return Failed(&ExecutionError{Engine: "sql", Err: fmt.Errorf("open session: %w", err)})
	}
	defer db.Close()
	// The in-memory session must stay on one connection or the temp data
	// vanishes between statements.
	db.SetMaxOpenConns(1)

	if err := e.materialize(ctx, db, view); err != nil {
		return Failed(&ExecutionError{Engine: "sql", Err: err})
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return Failed(&ExecutionError{Engine: "sql", Err: fmt.Errorf("lock session read-only: %w", err)})
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		e.logger.Warn("query failed", zap.Error(err))
		return Failed(&ExecutionError{Engine: "sql", Err: err})
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Failed(&ExecutionError{Engine: "sql", Err: fmt.Errorf("read columns: %w", err)})
	}

	table := &Table{Columns: cols}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return Failed(&ExecutionError{Engine: "sql", Err: fmt.Errorf("scan row: %w", err)})
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			v := raw[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[c] = Sanitize(v)
		}
		table.Rows = append(table.Rows, row)
		if len(table.Rows) == MaxRows {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return Failed(&ExecutionError{Engine: "sql", Err: err})
	}

	exec := &Execution{OK: true, RowCount: view.Count()}
	if len(table.Rows) == 1 && len(cols) == 1 {
		exec.Result = Result{Kind: KindScalar, Scalar: table.Rows[0][cols[0]]}
	} else {
		exec.Result = Result{Kind: KindTable, Table: table}
	}
	return exec
}

// materialize creates and fills the df table from the authorized view.
func (e *SQLEngine) materialize(ctx context.Context, db *sql.DB, view *dataset.Frame) error {
	defs := view.ColumnDefs()
	if len(defs) == 0 {
		// An empty authorization set still needs a queryable surface.
		if _, err := db.ExecContext(ctx, `CREATE TABLE df ("value" TEXT)`); err != nil {
			return fmt.Errorf("create view table: %w", err)
		}
		return nil
	}

	colDecls := make([]string, len(defs))
	colNames := make([]string, len(defs))
	holders := make([]string, len(defs))
	for i, c := range defs {
		typ := "TEXT"
		if c.Kind == schema.Numeric {
			typ = "REAL"
		}
		colDecls[i] = fmt.Sprintf("%q %s", c.Name, typ)
		colNames[i] = fmt.Sprintf("%q", c.Name)
		holders[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE df (%s)", strings.Join(colDecls, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create view table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO df (%s) VALUES (%s)",
		strings.Join(colNames, ", "), strings.Join(holders, ", ")))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare load: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(defs))
	for i := 0; i < view.Count(); i++ {
		for j, c := range defs {
			args[j] = sqlValue(view.At(i, c.Name))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("load row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	return nil
}

// sqlValue flattens frame cells to SQLite-storable values. Datetimes use the
// canonical text layout SQLite's date functions understand; lists become
// JSON arrays queryable through json_each.
func sqlValue(v any) any {
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
