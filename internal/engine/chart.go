package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ChartSpec describes an optional visualization derived from a table.
type ChartSpec struct {
	Kind      string            `json:"kind"` // bar, line or pie
	Title     string            `json:"title"`
	Data      []map[string]any  `json:"data"`
	Encodings map[string]string `json:"encodings"`
}

// chartTerms is the visualization vocabulary that opts a question into chart
// derivation.
var chartTerms = []string{
	"chart", "graph", "plot", "bar", "line", "pie", "trend",
	"visualize", "visualise", "distribution", "breakdown",
}

var topNRe = regexp.MustCompile(`\btop\s+\d+\b`)

const (
	chartSampleRows = 80
	pieSliceCap     = 50
)

// WantsChart reports whether the question text asks for a visualization.
func WantsChart(question string) bool {
	lowered := strings.ToLower(question)
	for _, term := range chartTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return topNRe.MatchString(lowered)
}

// chartKind picks the chart type from the question vocabulary, defaulting
// to bar.
func chartKind(question string) string {
	lowered := strings.ToLower(question)
	for _, t := range []string{"pie", "donut", "doughnut"} {
		if strings.Contains(lowered, t) {
			return "pie"
		}
	}
	for _, t := range []string{"line", "trend", "timeline", "over time"} {
		if strings.Contains(lowered, t) {
			return "line"
		}
	}
	return "bar"
}

// BuildChartSpec derives a chart from the display table when the question
// asks for one. No chart is produced with fewer than two columns, no rows,
// or no numeric column.
func BuildChartSpec(question string, table *TableSpec) *ChartSpec {
	if !WantsChart(question) || table == nil {
		return nil
	}
	if len(table.Columns) < 2 || len(table.Rows) == 0 {
		return nil
	}

	sample := table.Rows
	if len(sample) > chartSampleRows {
		sample = sample[:chartSampleRows]
	}

	// Classify columns by attempting numeric coercion over the sample.
	var numericCols, categoricalCols []string
	for _, col := range table.Columns {
		hits := 0
		for _, row := range sample {
			if _, ok := chartFloat(row[col]); ok {
				hits++
			}
		}
		if hits > 0 {
			numericCols = append(numericCols, col)
		} else {
			categoricalCols = append(categoricalCols, col)
		}
	}
	if len(numericCols) == 0 {
		return nil
	}

	kind := chartKind(question)
	if kind == "pie" {
		return buildPie(table, sample, numericCols, categoricalCols)
	}
	return buildXY(kind, sample, numericCols, categoricalCols, table.Columns)
}

func buildPie(table *TableSpec, sample []map[string]any, numericCols, categoricalCols []string) *ChartSpec {
	labelCol := table.Columns[0]
	if len(categoricalCols) > 0 {
		labelCol = categoricalCols[0]
	}
	valueCol := pickNumeric(numericCols, labelCol)

	var data []map[string]any
	for _, row := range sample {
		if len(data) == pieSliceCap {
			break
		}
		value, ok := chartFloat(row[valueCol])
		if !ok {
			continue
		}
		label := "-"
		if v := row[labelCol]; v != nil {
			label = fmt.Sprint(v)
		}
		data = append(data, map[string]any{labelCol: label, valueCol: value})
	}
	if len(data) == 0 {
		return nil
	}
	title := table.Title
	if title == "" {
		title = "Analytics Pie Chart"
	}
	return &ChartSpec{
		Kind:      "pie",
		Title:     title,
		Data:      data,
		Encodings: map[string]string{"label": labelCol, "value": valueCol},
	}
}

func buildXY(kind string, sample []map[string]any, numericCols, categoricalCols, columns []string) *ChartSpec {
	xCol := columns[0]
	if len(categoricalCols) > 0 {
		xCol = categoricalCols[0]
	}
	yCol := pickNumeric(numericCols, xCol)

	var data []map[string]any
	for _, row := range sample {
		y, ok := chartFloat(row[yCol])
		if !ok {
			continue
		}
		data = append(data, map[string]any{xCol: row[xCol], yCol: y})
	}
	if len(data) == 0 {
		return nil
	}

	if looksDated(xCol) {
		sort.SliceStable(data, func(a, b int) bool {
			return fmt.Sprint(data[a][xCol]) < fmt.Sprint(data[b][xCol])
		})
	}

	return &ChartSpec{
		Kind:      kind,
		Title:     fmt.Sprintf("%s of %s by %s", capitalize(kind), yCol, xCol),
		Data:      data,
		Encodings: map[string]string{"x": xCol, "y": yCol},
	}
}

func pickNumeric(numericCols []string, excluding string) string {
	for _, c := range numericCols {
		if c != excluding {
			return c
		}
	}
	return numericCols[0]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// looksDated reports whether a column name suggests a date or time field,
// so line/bar points get sorted chronologically.
func looksDated(name string) bool {
	lowered := strings.ToLower(name)
	for _, marker := range []string{"date", "time", "eta", "ata", "month", "day", "week"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// chartFloat coerces a cell to float64 for classification and plotting.
// Booleans are deliberately not numeric.
func chartFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case bool:
		return 0, false
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		raw := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		raw = strings.TrimSuffix(raw, "%")
		if raw == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
