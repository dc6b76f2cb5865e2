package cache

import "fmt"

// DataAccessError wraps a snapshot fetch or parse failure. It is fatal for
// the request: the manager never retries past the transient backoff window,
// and callers own the user-facing message.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed during %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }
