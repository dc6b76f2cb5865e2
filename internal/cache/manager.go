// Package cache owns the process-wide daily snapshot of the master dataset
// and the per-tenant authorized views derived from it. Published frames are
// immutable; a refresh builds the full replacement before swapping it in, so
// readers never observe partial state.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"shiplens/internal/authz"
	"shiplens/internal/blob"
	"shiplens/internal/dataset"
	"shiplens/internal/retry"
	"shiplens/internal/schema"
)

// Config wires the manager's collaborators and knobs.
type Config struct {
	Dir       string           // local snapshot directory
	ObjectKey string           // object name in the remote container
	Mode      string           // "" for production, "test" suffixes snapshot files
	Registry  *schema.Registry // pruning and coercion rules
	Now       func() time.Time // injectable clock for rollover tests

	FetchAttempts int           // bounded backoff attempts for the remote fetch
	FetchBackoff  time.Duration // base backoff delay
}

// Manager is the dataset cache service. Construct one at process start and
// inject it into consumers.
type Manager struct {
	store  blob.Store
	cfg    Config
	logger *zap.Logger

	flight singleflight.Group

	mu        sync.Mutex
	master    *dataset.Frame
	masterDay string
	views     map[string]*dataset.Frame
}

// NewManager builds a Manager. Registry defaults to the shipment registry,
// the clock to time.Now, and fetch policy to 3 attempts from 500ms.
func NewManager(store blob.Store, cfg Config, logger *zap.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache directory required")
	}
	if cfg.ObjectKey == "" {
		cfg.ObjectKey = "master_ds.db"
	}
	if cfg.Registry == nil {
		cfg.Registry = schema.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 3
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = 500 * time.Millisecond
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger.Named("cache"),
		views:  make(map[string]*dataset.Frame),
	}, nil
}

// Registry exposes the column registry for prompt building.
func (m *Manager) Registry() *schema.Registry { return m.cfg.Registry }

func (m *Manager) today() string { return m.cfg.Now().Format("2006-01-02") }

func (m *Manager) suffix() string {
	if m.cfg.Mode == "test" {
		return ".test"
	}
	return ""
}

func (m *Manager) snapshotPath(day string) string {
	return filepath.Join(m.cfg.Dir, fmt.Sprintf("master_%s%s.db", day, m.suffix()))
}

// EnsureSnapshot guarantees the snapshot file for day exists locally and
// returns its path. Stale snapshot files are removed first; a failed fetch
// leaves no partial file behind and surfaces a DataAccessError.
func (m *Manager) EnsureSnapshot(ctx context.Context, day string) (string, error) {
	target := m.snapshotPath(day)
	m.cleanupStale(target)

	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	tmp := target + ".tmp"
	fetch := func() error {
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if err := m.store.Fetch(ctx, m.cfg.ObjectKey, f); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		return f.Close()
	}

	m.logger.Info("fetching snapshot",
		zap.String("key", m.cfg.ObjectKey),
		zap.String("day", day))
	err := retry.Do(ctx, m.cfg.FetchAttempts, m.cfg.FetchBackoff, blob.IsTransient, fetch)
	if err != nil {
		os.Remove(tmp)
		return "", &DataAccessError{Op: "fetch", Err: err}
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", &DataAccessError{Op: "promote", Err: err}
	}
	return target, nil
}

// cleanupStale deletes snapshot files whose day or mode does not match the
// target, keeping invariant: one on-disk snapshot per day and mode.
func (m *Manager) cleanupStale(target string) {
	matches, err := filepath.Glob(filepath.Join(m.cfg.Dir, "master_*.db"))
	if err != nil {
		return
	}
	want := filepath.Base(target)
	for _, path := range matches {
		if filepath.Base(path) == want {
			continue
		}
		if err := os.Remove(path); err != nil {
			m.logger.Warn("failed to remove stale snapshot", zap.String("path", path), zap.Error(err))
			continue
		}
		m.logger.Info("removed stale snapshot", zap.String("path", path))
	}
}

// Master returns the master frame for the current day, loading it on first
// access or after a day rollover. Concurrent cache misses share one reload
// via singleflight; all derived views are dropped on publish.
func (m *Manager) Master(ctx context.Context) (*dataset.Frame, error) {
	day := m.today()

	m.mu.Lock()
	if m.master != nil && m.masterDay == day {
		f := m.master
		m.mu.Unlock()
		return f, nil
	}
	m.mu.Unlock()

	key := day + "|" + m.cfg.Mode
	v, err, _ := m.flight.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// published while we waited for the slot.
		m.mu.Lock()
		if m.master != nil && m.masterDay == day {
			f := m.master
			m.mu.Unlock()
			return f, nil
		}
		m.mu.Unlock()

		path, err := m.EnsureSnapshot(ctx, day)
		if err != nil {
			return nil, err
		}
		frame, err := loadSnapshot(ctx, path, m.cfg.Registry)
		if err != nil {
			return nil, &DataAccessError{Op: "parse", Err: err}
		}

		m.mu.Lock()
		m.master = frame
		m.masterDay = day
		m.views = make(map[string]*dataset.Frame)
		m.mu.Unlock()

		m.logger.Info("master snapshot published",
			zap.String("day", day),
			zap.Int("rows", frame.Count()),
			zap.Strings("columns", frame.Columns()))
		return frame, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dataset.Frame), nil
}

// View returns the authorized view for the given codes. The empty set
// yields an empty frame without touching the load path. Cached entries are
// stored once per canonical key per day; callers always receive an
// independent copy.
func (m *Manager) View(ctx context.Context, codes []string) (*dataset.Frame, error) {
	key := authz.CanonicalKey(codes)
	if key == "" {
		return dataset.Empty(nil), nil
	}

	master, err := m.Master(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if cached, ok := m.views[key]; ok {
		m.mu.Unlock()
		return cached.Clone(), nil
	}
	m.mu.Unlock()

	view := authz.Filter(master, m.cfg.Registry.AuthColumnName(), codes)

	m.mu.Lock()
	// Only cache against the currently published day's master.
	if m.masterDay == m.today() {
		m.views[key] = view
	}
	m.mu.Unlock()

	m.logger.Debug("authorized view computed",
		zap.String("codes", strings.ReplaceAll(key, "|", ",")),
		zap.Int("rows", view.Count()))
	return view.Clone(), nil
}
