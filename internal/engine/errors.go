package engine

import "fmt"

// ValidationError is a pre-flight rejection: the fragment never ran. It is
// eligible for the one-shot repair.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ExecutionError is a runtime failure inside an engine. It is eligible for
// the one-shot repair.
type ExecutionError struct {
	Engine string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s execution failed: %v", e.Engine, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
