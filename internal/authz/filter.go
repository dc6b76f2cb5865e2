// Package authz enforces row-level visibility: a row is visible to a set of
// consignee codes exactly when its authorization column intersects that set.
// This is the single enforcement point for both execution engines: the SQL
// engine materializes its session table from the frame produced here, so the
// two surfaces cannot diverge.
package authz

import (
	"sort"
	"strings"

	"shiplens/internal/dataset"
)

// CanonicalKey normalizes a code set into the cache key: deduplicated,
// sorted, pipe-joined. Blank entries are dropped.
func CanonicalKey(codes []string) string {
	return strings.Join(Normalize(codes), "|")
}

// Normalize returns the deduplicated, sorted code set.
func Normalize(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	var out []string
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Filter selects the rows of master whose authCol value intersects codes.
// Conceptually each row is expanded to one entry per carried code, entries
// are tested for membership, and the originating rows of the matches are
// recovered; the single pass below computes the same set.
func Filter(master *dataset.Frame, authCol string, codes []string) *dataset.Frame {
	allowed := make(map[string]bool, len(codes))
	for _, c := range Normalize(codes) {
		allowed[c] = true
	}
	if len(allowed) == 0 {
		return dataset.Empty(master.ColumnDefs())
	}
	return master.Filter(func(r dataset.Row) bool {
		for _, code := range r.List(authCol) {
			if allowed[strings.TrimSpace(code)] {
				return true
			}
		}
		return false
	})
}
