package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tapline-hq/cellar/pkg/ordering"
	"tapline-hq/cellar/pkg/ordering/policy"
)

// Manager holds the current preferences and serves consistent snapshots to
// runs while the underlying YAML file may be edited. When a per-item Store
// is attached its overrides take precedence over the file.
type Manager struct {
	path   string
	store  *Store
	logger *slog.Logger

	mu      sync.RWMutex
	current *Preferences

	watchMu  sync.Mutex
	watching bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewManager loads preferences from path and returns a manager over them.
// store may be nil when per-item overrides are not in use.
func NewManager(path string, store *Store, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	return &Manager{
		path:    path,
		store:   store,
		logger:  logger,
		current: p,
	}, nil
}

// Current returns the active preference snapshot.
func (m *Manager) Current() *Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// EffectiveTargets returns the file targets with any stored per-item
// overrides applied.
func (m *Manager) EffectiveTargets(ctx context.Context) (policy.Targets, error) {
	targets := m.Current().Targets
	if m.store == nil {
		return targets, nil
	}
	return m.store.ApplyTo(ctx, targets)
}

// Constraints returns the run constraints from the active snapshot.
func (m *Manager) Constraints() ordering.Constraints {
	return m.Current().Constraints
}

// Reload re-reads the preferences file and swaps in the new snapshot.
// In-flight runs keep the snapshot they started with.
func (m *Manager) Reload() error {
	p, err := LoadFile(m.path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current = p
	m.mu.Unlock()

	m.logger.Info("Preferences reloaded",
		"path", m.path,
		"never_order_items", len(p.Targets.NeverOrder),
	)
	return nil
}

// Watch watches the preferences file for changes and reloads on edits.
// It blocks until the context is cancelled or Stop is called. Changes are
// debounced so editors that write in several bursts trigger one reload.
func (m *Manager) Watch(ctx context.Context) error {
	m.watchMu.Lock()
	if m.watching {
		m.watchMu.Unlock()
		return fmt.Errorf("preferences watcher already running")
	}
	m.watching = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.watchMu.Unlock()

	defer func() {
		m.watchMu.Lock()
		m.watching = false
		close(m.doneCh)
		m.watchMu.Unlock()
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the containing directory rather than the file itself so
	// rename-and-replace saves keep working.
	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	debounce := newDebouncer(100 * time.Millisecond)
	defer debounce.Stop()

	m.logger.Info("Preferences watcher started", "path", m.path)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Preferences watcher stopped (context cancelled)")
			return nil

		case <-m.stopCh:
			m.logger.Info("Preferences watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !m.shouldProcessEvent(event) {
				continue
			}

			m.logger.Debug("Preferences file event",
				"path", event.Name,
				"op", event.Op.String(),
			)

			debounce.Trigger(func() {
				if err := m.Reload(); err != nil {
					m.logger.Error("Preferences reload failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			m.logger.Error("Preferences watcher error", "error", err)
		}
	}
}

// Stop stops a running watcher and waits for it to exit.
func (m *Manager) Stop() {
	m.watchMu.Lock()
	if !m.watching {
		m.watchMu.Unlock()
		return
	}
	stopCh, doneCh := m.stopCh, m.doneCh
	m.watchMu.Unlock()

	close(stopCh)
	<-doneCh
}

func (m *Manager) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	// Only the preferences file itself matters; the watch is on its
	// directory.
	return filepath.Clean(event.Name) == filepath.Clean(m.path) ||
		strings.EqualFold(filepath.Base(event.Name), filepath.Base(m.path))
}

// debouncer collects rapid events and fires the callback only after a quiet
// period.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopCh   chan struct{}
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (d *debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		select {
		case <-d.stopCh:
			return
		default:
			d.mu.Lock()
			cb := d.callback
			d.mu.Unlock()
			if cb != nil {
				cb()
			}
		}
	})
}

func (d *debouncer) Stop() {
	close(d.stopCh)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
