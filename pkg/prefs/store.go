package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"tapline-hq/cellar/pkg/ordering/policy"
)

// ItemPref is a per-item preference override. A nil TargetWeeks means the
// item uses the category or run-wide default.
type ItemPref struct {
	ItemID      string
	TargetWeeks *float64
	NeverOrder  bool
	UpdatedAt   time.Time
}

// Store persists per-item preference overrides in SQLite. It is safe for
// concurrent use by a single process; SQLite only supports one writer so the
// connection pool is capped at one connection.
type Store struct {
	db        *sql.DB
	mu        sync.RWMutex
	closeOnce sync.Once

	setStmt    *sql.Stmt
	getStmt    *sql.Stmt
	deleteStmt *sql.Stmt
	listStmt   *sql.Stmt
}

// OpenStore opens (creating if necessary) the per-item preference store at
// the given path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize preference schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare preference statements: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS item_prefs (
		item_id      TEXT PRIMARY KEY,
		target_weeks REAL,
		never_order  INTEGER NOT NULL DEFAULT 0,
		updated_at   INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.setStmt, err = s.db.Prepare(`
		INSERT INTO item_prefs (item_id, target_weeks, never_order, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET
			target_weeks = excluded.target_weeks,
			never_order = excluded.never_order,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare set statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT item_id, target_weeks, never_order, updated_at
		FROM item_prefs WHERE item_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM item_prefs WHERE item_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT item_id, target_weeks, never_order, updated_at
		FROM item_prefs ORDER BY item_id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	return nil
}

// Set saves or replaces the preference for an item.
func (s *Store) Set(ctx context.Context, pref ItemPref) error {
	if pref.ItemID == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	if pref.UpdatedAt.IsZero() {
		pref.UpdatedAt = time.Now()
	}

	var target sql.NullFloat64
	if pref.TargetWeeks != nil {
		target = sql.NullFloat64{Float64: *pref.TargetWeeks, Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.setStmt.ExecContext(ctx, pref.ItemID, target, boolToInt(pref.NeverOrder), pref.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save preference for %q: %w", pref.ItemID, err)
	}
	return nil
}

// Get returns the preference for an item, or nil when none is stored.
func (s *Store) Get(ctx context.Context, itemID string) (*ItemPref, error) {
	if itemID == "" {
		return nil, fmt.Errorf("item id cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, err := scanPref(s.getStmt.QueryRowContext(ctx, itemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preference for %q: %w", itemID, err)
	}
	return pref, nil
}

// Delete removes the stored preference for an item. Deleting an item with no
// stored preference is a no-op.
func (s *Store) Delete(ctx context.Context, itemID string) error {
	if itemID == "" {
		return fmt.Errorf("item id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deleteStmt.ExecContext(ctx, itemID); err != nil {
		return fmt.Errorf("failed to delete preference for %q: %w", itemID, err)
	}
	return nil
}

// List returns all stored preferences ordered by item ID.
func (s *Store) List(ctx context.Context) ([]ItemPref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var prefs []ItemPref
	for rows.Next() {
		pref, err := scanPref(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preference row: %w", err)
		}
		prefs = append(prefs, *pref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preference rows: %w", err)
	}
	return prefs, nil
}

// ApplyTo folds the stored overrides into a Targets value. Stored target
// weeks become item overrides and stored never-order flags are appended to
// the never-order list. The input is not modified.
func (s *Store) ApplyTo(ctx context.Context, targets policy.Targets) (policy.Targets, error) {
	prefs, err := s.List(ctx)
	if err != nil {
		return targets, err
	}

	override := policy.Targets{
		ItemOverrides: make(map[string]float64),
	}
	for _, p := range prefs {
		if p.TargetWeeks != nil {
			override.ItemOverrides[p.ItemID] = *p.TargetWeeks
		}
		if p.NeverOrder {
			override.NeverOrder = append(override.NeverOrder, p.ItemID)
		}
	}
	return targets.Merge(override), nil
}

// Close releases the store's database handle. Close is idempotent.
func (s *Store) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.setStmt, s.getStmt, s.deleteStmt, s.listStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})
	return closeErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPref(row rowScanner) (*ItemPref, error) {
	var (
		itemID     string
		target     sql.NullFloat64
		neverOrder int
		updatedAt  int64
	)
	if err := row.Scan(&itemID, &target, &neverOrder, &updatedAt); err != nil {
		return nil, err
	}

	pref := &ItemPref{
		ItemID:     itemID,
		NeverOrder: neverOrder != 0,
		UpdatedAt:  time.Unix(updatedAt, 0),
	}
	if target.Valid {
		v := target.Float64
		pref.TargetWeeks = &v
	}
	return pref, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
