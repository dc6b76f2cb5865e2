package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Pre-flight validation for the script engine. Rejections happen before the
// interpreter ever sees the fragment, so no execution side effect occurs.

// allowedImports is the import allow list for script fragments. Everything
// else (os, net, syscall, unsafe and friends) is rejected by omission.
var allowedImports = map[string]bool{
	"fmt":           true,
	"strings":       true,
	"strconv":       true,
	"math":          true,
	"sort":          true,
	"time":          true,
	"encoding/json": true,
	ViewImportPath:  true,
}

var (
	importBlockRe  = regexp.MustCompile(`(?ms)^\s*import\s*\((.*?)\)`)
	importSingleRe = regexp.MustCompile(`(?m)^\s*import\s+(?:\w+\s+)?"([^"]+)"`)
	importQuotedRe = regexp.MustCompile(`"([^"]+)"`)
	dateLiteralRe  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	truthCheckRe   = regexp.MustCompile(`\bif\s+([A-Za-z_][A-Za-z0-9_]*)\s*\{`)
)

// Validate statically rejects unsafe or ambiguous fragments: disallowed
// imports, date literals that are not valid calendar dates, and truth-value
// tests on the view or derived result names. Each rejection carries a
// specific human-readable reason.
func Validate(fragment string) *ValidationError {
	for _, imp := range collectImports(fragment) {
		if !allowedImports[imp] {
			return &ValidationError{Reason: fmt.Sprintf(
				"import %q is not allowed in analytics execution; only %s may be used",
				imp, allowedImportList())}
		}
	}

	for _, token := range dateLiteralRe.FindAllString(fragment, -1) {
		if _, err := time.Parse("2006-01-02", token); err != nil {
			return &ValidationError{Reason: fmt.Sprintf(
				"invalid date literal %q; use a valid calendar date", token)}
		}
	}

	for _, match := range truthCheckRe.FindAllStringSubmatch(fragment, -1) {
		name := match[1]
		if name == ViewBinding || name == ResultBinding || name == FilteredBinding || strings.HasSuffix(name, "_df") {
			return &ValidationError{Reason: fmt.Sprintf(
				"ambiguous truth-value check on %q; use explicit checks like .IsEmpty() or .Count()", name)}
		}
	}
	return nil
}

func collectImports(fragment string) []string {
	var imports []string
	for _, block := range importBlockRe.FindAllStringSubmatch(fragment, -1) {
		for _, q := range importQuotedRe.FindAllStringSubmatch(block[1], -1) {
			imports = append(imports, q[1])
		}
	}
	for _, single := range importSingleRe.FindAllStringSubmatch(fragment, -1) {
		imports = append(imports, single[1])
	}
	return imports
}

func allowedImportList() string {
	names := make([]string, 0, len(allowedImports))
	for name := range allowedImports {
		names = append(names, name)
	}
	// Deterministic ordering for error messages.
	sort.Strings(names)
	return strings.Join(names, ", ")
}
