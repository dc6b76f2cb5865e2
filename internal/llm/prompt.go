package llm

import (
	"fmt"
	"strings"
	"time"
)

// PromptInput carries everything the prompt builders need about the current
// request.
type PromptInput struct {
	Question  string
	Reference string // column reference block for the authorized view
	Sample    string // small rendered sample of the authorized view
	Today     time.Time
}

const sqlInstructions = `You write SQLite SELECT queries over a single table named df.
Rules:
- Output exactly one query inside a single ` + "```sql" + ` fenced block, nothing else.
- Read-only: SELECT statements only, never modify data or schema.
- Dates are stored as 'YYYY-MM-DD HH:MM:SS' text; compare them with date() or plain string comparison.
- The po_numbers and consignee_codes columns hold JSON arrays; use json_each to expand them.
- Cap large outputs with LIMIT 500.`

const scriptInstructions = `You write Go fragments executed in a restricted interpreter.
Rules:
- Output exactly one fragment inside a single ` + "```go" + ` fenced block, nothing else.
- The authorized dataset is already bound as df (a *data.Frame); never load data yourself.
- Allowed imports: fmt, strings, strconv, math, sort, time, encoding/json. Nothing else.
- Frames are never truthy; test emptiness with df.IsEmpty() or df.Count().
- Assign the answer to a variable named result (a number, string, map, or frame).
- If the answer is a subset of rows, also assign that frame to a variable named filtered.
- Useful frame methods: Filter, Select, Head, Count, Col, Sum, Mean, Min, Max, GroupCount, GroupSum, Distinct, SortByDesc.
- Row accessors: r.Str(col), r.Num(col), r.Time(col), r.List(col), r.IsNull(col).
- Write literal dates as valid YYYY-MM-DD values.`

// BuildSQLPrompt assembles the generation prompt for the relational engine.
func BuildSQLPrompt(in PromptInput) string {
	return buildPrompt(sqlInstructions, in)
}

// BuildScriptPrompt assembles the generation prompt for the script engine.
func BuildScriptPrompt(in PromptInput) string {
	return buildPrompt(scriptInstructions, in)
}

func buildPrompt(instructions string, in PromptInput) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Today's date is %s.\n\n", in.Today.Format("2006-01-02"))
	if in.Reference != "" {
		b.WriteString("Columns of df:\n")
		b.WriteString(in.Reference)
		b.WriteString("\n")
	}
	if in.Sample != "" {
		b.WriteString("Sample rows:\n")
		b.WriteString(in.Sample)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s\n", strings.TrimSpace(in.Question))
	return b.String()
}

// BuildRepairPrompt asks for a corrected fragment after a failed execution.
// It carries the failed fragment and the verbatim failure so the collaborator
// can fix the actual mistake instead of guessing.
func BuildRepairPrompt(lang, fragment, failure string, in PromptInput) string {
	instructions := sqlInstructions
	if lang == "go" {
		instructions = scriptInstructions
	}
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nThe previous attempt failed. Fix it.\n\n")
	fmt.Fprintf(&b, "Failed fragment:\n```%s\n%s\n```\n\n", lang, strings.TrimSpace(fragment))
	fmt.Fprintf(&b, "Failure:\n%s\n\n", strings.TrimSpace(failure))
	if in.Reference != "" {
		b.WriteString("Columns of df:\n")
		b.WriteString(in.Reference)
		b.WriteString("\n")
	}
	if in.Sample != "" {
		b.WriteString("Sample rows:\n")
		b.WriteString(in.Sample)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s\n", strings.TrimSpace(in.Question))
	return b.String()
}
