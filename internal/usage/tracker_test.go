package usage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordAndTotals(t *testing.T) {
	tr, err := NewTracker("")
	require.NoError(t, err)

	tr.Record("gemini", "gemini-2.0-flash", "generate", TokenCounts{Prompt: 100, Completion: 20, Total: 120})
	tr.Record("gemini", "gemini-2.0-flash", "repair", TokenCounts{Prompt: 50, Completion: 10, Total: 60})

	totals := tr.Totals()
	assert.Equal(t, 150, totals.Prompt)
	assert.Equal(t, 30, totals.Completion)
	assert.Equal(t, 180, totals.Total)
}

func TestTrackerPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()

	tr, err := NewTracker(dir)
	require.NoError(t, err)
	tr.Record("gemini", "gemini-2.0-flash", "generate", TokenCounts{Prompt: 10, Completion: 5, Total: 15})
	require.NoError(t, tr.Save())

	reloaded, err := NewTracker(dir)
	require.NoError(t, err)
	assert.Equal(t, 15, reloaded.Totals().Total)
}

func TestTrackerSurvivesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "usage.json"), []byte("{not json"), 0644))

	tr, err := NewTracker(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Totals().Total)
}

func TestTrackerSaveWithoutPersistence(t *testing.T) {
	tr, err := NewTracker("")
	require.NoError(t, err)
	assert.NoError(t, tr.Save())
}
