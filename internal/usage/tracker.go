// Package usage records token consumption of the text-generation
// collaborator, aggregated by provider, model and operation, with optional
// JSON persistence.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenCounts accumulates prompt/completion/total token usage.
type TokenCounts struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Total      int `json:"total_tokens"`
}

// Add merges other into t.
func (t *TokenCounts) Add(other TokenCounts) {
	t.Prompt += other.Prompt
	t.Completion += other.Completion
	t.Total += other.Total
}

// Data is the persisted shape.
type Data struct {
	Version     string                 `json:"version"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Totals      TokenCounts            `json:"totals"`
	ByProvider  map[string]TokenCounts `json:"by_provider"`
	ByModel     map[string]TokenCounts `json:"by_model"`
	ByOperation map[string]TokenCounts `json:"by_operation"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	data     Data
	filePath string
}

// NewTracker builds a tracker persisting under dir (empty dir disables
// persistence). Existing data is loaded best-effort.
func NewTracker(dir string) (*Tracker, error) {
	t := &Tracker{data: emptyData()}
	if dir == "" {
		return t, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create usage dir: %w", err)
	}
	t.filePath = filepath.Join(dir, "usage.json")
	if err := t.load(); err != nil {
		// Corrupt or missing files start fresh rather than failing boot.
		t.data = emptyData()
	}
	return t, nil
}

func emptyData() Data {
	return Data{
		Version:     "1.0",
		ByProvider:  make(map[string]TokenCounts),
		ByModel:     make(map[string]TokenCounts),
		ByOperation: make(map[string]TokenCounts),
	}
}

func (t *Tracker) load() error {
	raw, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &t.data); err != nil {
		return err
	}
	if t.data.ByProvider == nil {
		t.data.ByProvider = make(map[string]TokenCounts)
	}
	if t.data.ByModel == nil {
		t.data.ByModel = make(map[string]TokenCounts)
	}
	if t.data.ByOperation == nil {
		t.data.ByOperation = make(map[string]TokenCounts)
	}
	return nil
}

// Record adds one call's usage under the given dimensions.
func (t *Tracker) Record(provider, model, operation string, counts TokenCounts) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Totals.Add(counts)
	bump(t.data.ByProvider, provider, counts)
	bump(t.data.ByModel, model, counts)
	bump(t.data.ByOperation, operation, counts)
	t.data.UpdatedAt = time.Now().UTC()
}

func bump(m map[string]TokenCounts, key string, counts TokenCounts) {
	if key == "" {
		key = "unknown"
	}
	entry := m[key]
	entry.Add(counts)
	m[key] = entry
}

// Totals returns the aggregate counts.
func (t *Tracker) Totals() TokenCounts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.Totals
}

// Save writes the data to disk when persistence is configured.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filePath == "" {
		return nil
	}
	raw, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal usage: %w", err)
	}
	tmp := t.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("write usage: %w", err)
	}
	return os.Rename(tmp, t.filePath)
}
