// Package retry runs an operation with bounded exponential backoff for a
// caller-defined transient error class. Anything outside that class fails
// immediately.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Do invokes fn up to attempts times. After a transient failure it sleeps
// base<<n before the next try, honoring ctx cancellation. A non-transient
// error is returned as-is on the spot.
func Do(ctx context.Context, attempts int, base time.Duration, transient func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(base << uint(i-1)):
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		if transient == nil || !transient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
