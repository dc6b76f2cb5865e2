package engine

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"shiplens/internal/dataset"
	"shiplens/internal/schema"
)

// Fixed binding conventions for script fragments.
const (
	// ViewBinding is the name under which the authorized view is visible.
	ViewBinding = "df"
	// ResultBinding is read after execution; if absent, captured stdout is
	// used instead.
	ResultBinding = "result"
	// FilteredBinding optionally holds a derived frame used for the
	// human-readable preview.
	FilteredBinding = "filtered"
	// ViewImportPath is the virtual package exposing the view API.
	ViewImportPath = "shiplens/data"
)

// ScriptEngine runs untrusted script fragments in an embedded interpreter
// with a restricted namespace: allow-listed stdlib packages plus the
// authorized view bound as df. Fragments must pass Validate first; Execute
// enforces that.
type ScriptEngine struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewScriptEngine builds a script engine. Timeout defaults to 10s.
func NewScriptEngine(timeout time.Duration, logger *zap.Logger) *ScriptEngine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptEngine{timeout: timeout, logger: logger.Named("script")}
}

// Execute validates and runs the fragment against the view. Failures are
// returned as a failed Execution, never raised.
func (e *ScriptEngine) Execute(ctx context.Context, view *dataset.Frame, fragment string) *Execution {
	if verr := Validate(fragment); verr != nil {
		e.logger.Warn("pre-flight rejection", zap.String("reason", verr.Reason))
		return Failed(verr)
	}

	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stderr})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Failed(&ExecutionError{Engine: "script", Err: fmt.Errorf("load stdlib: %w", err)})
	}
	err := i.Use(interp.Exports{
		ViewImportPath + "/data": {
			"View":  reflect.ValueOf(view),
			"Frame": reflect.ValueOf((*dataset.Frame)(nil)),
			"Row":   reflect.ValueOf((*dataset.Row)(nil)),
		},
	})
	if err != nil {
		return Failed(&ExecutionError{Engine: "script", Err: fmt.Errorf("bind view symbols: %w", err)})
	}
	if _, err := i.Eval(`import "` + ViewImportPath + `"`); err != nil {
		return Failed(&ExecutionError{Engine: "script", Err: fmt.Errorf("import view package: %w", err)})
	}
	if _, err := i.Eval(ViewBinding + ` := data.View`); err != nil {
		return Failed(&ExecutionError{Engine: "script", Err: fmt.Errorf("bind view: %w", err)})
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// The interpreter cannot be interrupted mid-eval; the goroutine is
	// abandoned on timeout and the request fails cleanly.
	done := make(chan error, 1)
	go func() {
		_, evalErr := i.Eval(fragment)
		done <- evalErr
	}()
	select {
	case evalErr := <-done:
		if evalErr != nil {
			e.logger.Warn("fragment failed", zap.Error(evalErr))
			return Failed(&ExecutionError{Engine: "script", Err: evalErr})
		}
	case <-ctx.Done():
		return Failed(&ExecutionError{Engine: "script", Err: fmt.Errorf("execution timed out: %w", ctx.Err())})
	}

	exec := &Execution{OK: true, Output: stdout.String(), RowCount: view.Count()}

	if rv, err := i.Eval(ResultBinding); err == nil && rv.IsValid() && rv.CanInterface() {
		exec.Result = Normalize(rv.Interface())
	}
	if exec.Result.Kind == KindNone {
		if out := strings.TrimSpace(stdout.String()); out != "" {
			exec.Result = Result{Kind: KindScalar, Scalar: out}
		}
	}

	if fv, err := i.Eval(FilteredBinding); err == nil && fv.IsValid() && fv.CanInterface() {
		if frame, ok := fv.Interface().(*dataset.Frame); ok && frame != nil && !frame.IsEmpty() {
			exec.Preview = buildPreview(frame)
		}
	}
	return exec
}

// buildPreview renders the first 50 rows of the derived frame, latest first,
// restricted to the preferred preview columns when present.
func buildPreview(frame *dataset.Frame) string {
	sorted := dataset.SortLatestFirst(frame)
	var present []string
	for _, name := range schema.PreviewColumns {
		if sorted.HasColumn(name) {
			present = append(present, name)
		}
	}
	if len(present) > 0 {
		sorted = sorted.Select(present...)
	}
	return renderTableText(frameTable(sorted.Head(50)))
}
