package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tapline-hq/cellar/pkg/ordering"
	"tapline-hq/cellar/pkg/ordering/policy"
)

// SQLiteConfig contains configuration for the SQLite run store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/cellar.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens the run database and initializes its schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite run store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := s.db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return fmt.Errorf("failed to insert schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("schema version mismatch: expected %d, got %d", SchemaVersion, version)
	}

	return nil
}

// SaveRun persists a complete run, replacing any run with the same ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *ordering.RecommendationRun) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if run.RunID == "" {
		return fmt.Errorf("run id cannot be empty")
	}

	targetsJSON, err := json.Marshal(run.Targets)
	if err != nil {
		return fmt.Errorf("failed to marshal targets: %w", err)
	}
	constraintsJSON, err := json.Marshal(run.Constraints)
	if err != nil {
		return fmt.Errorf("failed to marshal constraints: %w", err)
	}
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	warningsJSON, err := json.Marshal(run.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}
	recountsJSON, err := json.Marshal(run.Recounts)
	if err != nil {
		return fmt.Errorf("failed to marshal recounts: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Replace any previous version of this run. Cascades clear the old
	// recommendation rows.
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, run.RunID); err != nil {
		return fmt.Errorf("failed to clear previous run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, dataset_id, created_at, total_items, total_spend,
			targets, constraints, summary, warnings, recounts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID, run.DatasetID, run.CreatedAt,
		run.Summary.TotalItems, run.Summary.TotalSpend,
		string(targetsJSON), string(constraintsJSON), string(summaryJSON),
		string(warningsJSON), string(recountsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recommendations (run_id, item_id, name, category, vendor,
			on_hand, weeks_on_hand, avg_weekly_usage,
			quantity, unit_cost, total_cost,
			reason, reason_text, confidence, adjustments, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare recommendation insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range run.Recommendations {
		adjustmentsJSON, err := json.Marshal(rec.Adjustments)
		if err != nil {
			return fmt.Errorf("failed to marshal adjustments for %q: %w", rec.ItemID, err)
		}
		itemWarningsJSON, err := json.Marshal(rec.Warnings)
		if err != nil {
			return fmt.Errorf("failed to marshal warnings for %q: %w", rec.ItemID, err)
		}

		_, err = stmt.ExecContext(ctx,
			run.RunID, rec.ItemID, rec.Name, rec.Category, rec.Vendor,
			rec.OnHand, rec.WeeksOnHand, rec.AvgWeeklyUsage,
			rec.Quantity, rec.UnitCost, rec.TotalCost,
			string(rec.Reason), rec.ReasonText, string(rec.Confidence),
			string(adjustmentsJSON), string(itemWarningsJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert recommendation %q: %w", rec.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("run saved",
		"run_id", run.RunID,
		"recommendations", len(run.Recommendations),
	)
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*ordering.RecommendationRun, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}

	var (
		run             ordering.RecommendationRun
		targetsJSON     string
		constraintsJSON string
		summaryJSON     string
		warningsJSON    sql.NullString
		recountsJSON    sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, dataset_id, created_at, targets, constraints, summary, warnings, recounts
		FROM runs WHERE run_id = ?
	`, runID).Scan(
		&run.RunID, &run.DatasetID, &run.CreatedAt,
		&targetsJSON, &constraintsJSON, &summaryJSON,
		&warningsJSON, &recountsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %q: %w", runID, err)
	}

	if err := json.Unmarshal([]byte(targetsJSON), &run.Targets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal targets: %w", err)
	}
	if err := json.Unmarshal([]byte(constraintsJSON), &run.Constraints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal constraints: %w", err)
	}
	if err := json.Unmarshal([]byte(summaryJSON), &run.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &run.Warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
		}
	}
	if recountsJSON.Valid && recountsJSON.String != "" {
		if err := json.Unmarshal([]byte(recountsJSON.String), &run.Recounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recounts: %w", err)
		}
	}

	recs, err := s.loadRecommendations(ctx, runID)
	if err != nil {
		return nil, err
	}
	run.Recommendations = recs

	return &run, nil
}

func (s *SQLiteStore) loadRecommendations(ctx context.Context, runID string) ([]ordering.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, name, category, vendor,
			on_hand, weeks_on_hand, avg_weekly_usage,
			quantity, unit_cost, total_cost,
			reason, reason_text, confidence, adjustments, warnings
		FROM recommendations WHERE run_id = ? ORDER BY item_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations for %q: %w", runID, err)
	}
	defer rows.Close()

	var recs []ordering.Recommendation
	for rows.Next() {
		var (
			rec             ordering.Recommendation
			reason          string
			confidence      string
			adjustmentsJSON sql.NullString
			warningsJSON    sql.NullString
		)
		err := rows.Scan(
			&rec.ItemID, &rec.Name, &rec.Category, &rec.Vendor,
			&rec.OnHand, &rec.WeeksOnHand, &rec.AvgWeeklyUsage,
			&rec.Quantity, &rec.UnitCost, &rec.TotalCost,
			&reason, &rec.ReasonText, &confidence,
			&adjustmentsJSON, &warningsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation row: %w", err)
		}

		rec.Reason = policy.ReasonCode(reason)
		rec.Confidence = policy.Confidence(confidence)

		if adjustmentsJSON.Valid && adjustmentsJSON.String != "" {
			if err := json.Unmarshal([]byte(adjustmentsJSON.String), &rec.Adjustments); err != nil {
				return nil, fmt.Errorf("failed to unmarshal adjustments: %w", err)
			}
		}
		if warningsJSON.Valid && warningsJSON.String != "" {
			if err := json.Unmarshal([]byte(warningsJSON.String), &rec.Warnings); err != nil {
				return nil, fmt.Errorf("failed to unmarshal item warnings: %w", err)
			}
		}

		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendation rows: %w", err)
	}
	return recs, nil
}

// ListRuns returns run headers matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunHeader, error) {
	query := `
		SELECT run_id, dataset_id, created_at, total_items, total_spend
		FROM runs
	`
	var args []any
	if !filter.Since.IsZero() {
		query += ` WHERE created_at >= ?`
		args = append(args, filter.Since)
	}
	query += ` ORDER BY created_at DESC, run_id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var headers []RunHeader
	for rows.Next() {
		var h RunHeader
		if err := rows.Scan(&h.RunID, &h.DatasetID, &h.CreatedAt, &h.TotalItems, &h.TotalSpend); err != nil {
			return nil, fmt.Errorf("failed to scan run header: %w", err)
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run headers: %w", err)
	}
	return headers, nil
}

// SaveApprovals replaces the approvals for a run.
func (s *SQLiteStore) SaveApprovals(ctx context.Context, runID string, approvals []Approval) error {
	if runID == "" {
		return fmt.Errorf("run id cannot be empty")
	}

	// The run must exist; approvals against unknown runs are operator
	// error, not data to persist.
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE run_id = ?`, runID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check run %q: %w", runID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM approvals WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear previous approvals: %w", err)
	}

	for _, a := range approvals {
		decidedAt := a.DecidedAt
		if decidedAt.IsZero() {
			decidedAt = time.Now()
		}

		var override sql.NullInt64
		if a.QuantityOverride != nil {
			override = sql.NullInt64{Int64: int64(*a.QuantityOverride), Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO approvals (run_id, item_id, approved, quantity_override, note, decided_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, a.ItemID, a.Approved, override, a.Note, decidedAt)
		if err != nil {
			return fmt.Errorf("failed to insert approval for %q: %w", a.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit approvals: %w", err)
	}
	return nil
}

// GetApprovals returns the approvals recorded for a run.
func (s *SQLiteStore) GetApprovals(ctx context.Context, runID string) ([]Approval, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, item_id, approved, quantity_override, note, decided_at
		FROM approvals WHERE run_id = ? ORDER BY item_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approvals for %q: %w", runID, err)
	}
	defer rows.Close()

	approvals := []Approval{}
	for rows.Next() {
		var (
			a        Approval
			override sql.NullInt64
		)
		if err := rows.Scan(&a.RunID, &a.ItemID, &a.Approved, &override, &a.Note, &a.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval row: %w", err)
		}
		if override.Valid {
			v := int(override.Int64)
			a.QuantityOverride = &v
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval rows: %w", err)
	}
	return approvals, nil
}

// DeleteRun removes a single run. Approvals and recommendation rows go
// with it via foreign key cascade.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	if runID == "" {
		return fmt.Errorf("run id cannot be empty")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %q: %w", runID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRunNotFound
	}

	s.logger.Info("run deleted", "run_id", runID)
	return nil
}

// DeleteRunsBefore removes runs created before the cutoff.
func (s *SQLiteStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted > 0 {
		s.logger.Info("old runs deleted",
			"count", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return int(deleted), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
