// Package blob abstracts the object store holding the daily master dataset.
// The production backend is S3-compatible; tests use the in-memory store.
package blob

import (
	"context"
	"io"
	"strings"
)

// Store fetches named objects from a single container.
type Store interface {
	// Fetch streams the object's bytes into w. Implementations return the
	// error unwrapped so callers can classify it with IsTransient.
	Fetch(ctx context.Context, key string, w io.Writer) error
}

// transientMarkers is the error-text class eligible for backoff. Anything
// else is treated as fatal by callers.
var transientMarkers = []string{
	"429",
	"rate",
	"throttl",
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"temporarily",
	"500",
	"502",
	"503",
	"504",
	"unexpected eof",
}

// IsTransient reports whether an error looks like a recoverable storage or
// network failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
