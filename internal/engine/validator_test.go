package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAllowsCleanFragment(t *testing.T) {
	fragment := `
import (
	"fmt"
	"strings"
)
count := df.Filter(func(r data.Row) bool {
	return strings.Contains(r.Str("discharge_port"), "LOS")
}).Count()
result := fmt.Sprintf("%d containers", count)
`
	assert.Nil(t, Validate(fragment))
}

func TestValidateRejectsDisallowedImport(t *testing.T) {
	cases := []struct {
		name     string
		fragment string
		module   string
	}{
		{"os single", `import "os"` + "\nresult := os.Getenv(\"HOME\")", `"os"`},
		{"net in block", "import (\n\t\"fmt\"\n\t\"net/http\"\n)\nresult := 1", `"net/http"`},
		{"os exec aliased", `import x "os/exec"` + "\nresult := 1", `"os/exec"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verr := Validate(tc.fragment)
			require.NotNil(t, verr)
			assert.Contains(t, verr.Reason, tc.module)
			assert.Contains(t, verr.Reason, "not allowed")
		})
	}
}

func TestValidateRejectsInvalidDateLiteral(t *testing.T) {
	verr := Validate(`result := df.Filter(func(r data.Row) bool { return r.Str("x") > "2026-02-30" }).Count()`)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Reason, "2026-02-30")

	assert.Nil(t, Validate(`result := "2026-02-28"`))
}

func TestValidateRejectsTruthinessChecks(t *testing.T) {
	for _, fragment := range []string{
		"if df {\n}",
		"if result {\n}",
		"if filtered {\n}",
		"if delayed_df {\n}",
	} {
		verr := Validate(fragment)
		require.NotNil(t, verr, fragment)
		assert.Contains(t, verr.Reason, "truth-value")
	}

	// Ordinary boolean conditions pass.
	assert.Nil(t, Validate("if ok {\n\tresult = 1\n}"))
}

func TestValidateRejectionHappensBeforeExecution(t *testing.T) {
	eng := NewScriptEngine(0, nil)
	exec := eng.Execute(t.Context(), emptyView(), `import "os"`+"\nresult := 1")

	require.False(t, exec.OK)
	var verr *ValidationError
	require.ErrorAs(t, exec.Err, &verr)
	assert.Empty(t, exec.Output)
}
