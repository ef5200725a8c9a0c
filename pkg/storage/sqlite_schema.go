package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the run database schema.
const Schema = `
-- Run headers, one row per recommendation run
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    dataset_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,

    total_items INTEGER NOT NULL,
    total_spend REAL NOT NULL,

    -- JSON-encoded run detail
    targets TEXT NOT NULL,
    constraints TEXT NOT NULL,
    summary TEXT NOT NULL,
    warnings TEXT,
    recounts TEXT
);

-- Per-item recommendation rows
CREATE TABLE IF NOT EXISTS recommendations (
    run_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    name TEXT,
    category TEXT,
    vendor TEXT,

    on_hand REAL NOT NULL,
    weeks_on_hand REAL NOT NULL,
    avg_weekly_usage REAL NOT NULL,

    quantity INTEGER NOT NULL,
    unit_cost REAL NOT NULL,
    total_cost REAL NOT NULL,

    reason TEXT NOT NULL,
    reason_text TEXT,
    confidence TEXT NOT NULL,

    -- JSON-encoded string lists
    adjustments TEXT,
    warnings TEXT,

    PRIMARY KEY (run_id, item_id),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

-- Operator approvals
CREATE TABLE IF NOT EXISTS approvals (
    run_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    approved BOOLEAN NOT NULL,
    quantity_override INTEGER,
    note TEXT,
    decided_at TIMESTAMP NOT NULL,

    PRIMARY KEY (run_id, item_id),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_recommendations_run ON recommendations(run_id);
CREATE INDEX IF NOT EXISTS idx_approvals_run ON approvals(run_id);
`

// InsertSchemaVersion records the schema version after creation.
const InsertSchemaVersion = `
INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)
`

// GetSchemaVersion retrieves the highest applied schema version.
const GetSchemaVersion = `
SELECT COALESCE(MAX(version), 0) FROM schema_version
`
