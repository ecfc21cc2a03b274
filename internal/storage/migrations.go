package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Campaigns table
CREATE TABLE IF NOT EXISTS campaigns (
    id BLOB PRIMARY KEY,
    name TEXT,
    created_at INTEGER NOT NULL
);

-- Assets table; record_type and type_data stay nullable so rows written
-- before typed records existed can still be loaded and rejected at read time
CREATE TABLE IF NOT EXISTS assets (
    id BLOB PRIMARY KEY,
    campaign_id BLOB NOT NULL,
    name TEXT,
    gm_summary TEXT,
    gm_notes TEXT,
    player_summary TEXT,
    player_notes TEXT,
    record_type TEXT,
    type_data TEXT,
    content_hash BLOB,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (campaign_id) REFERENCES campaigns(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_assets_campaign ON assets(campaign_id);
CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(campaign_id, record_type);

-- Full-text search on asset text
CREATE VIRTUAL TABLE IF NOT EXISTS assets_fts USING fts5(
    name, gm_summary, gm_notes, player_summary, player_notes,
    content='assets',
    content_rowid='rowid'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS assets_ai AFTER INSERT ON assets BEGIN
    INSERT INTO assets_fts(rowid, name, gm_summary, gm_notes, player_summary, player_notes)
    VALUES (new.rowid, new.name, new.gm_summary, new.gm_notes, new.player_summary, new.player_notes);
END;

CREATE TRIGGER IF NOT EXISTS assets_ad AFTER DELETE ON assets BEGIN
    INSERT INTO assets_fts(assets_fts, rowid, name, gm_summary, gm_notes, player_summary, player_notes)
    VALUES ('delete', old.rowid, old.name, old.gm_summary, old.gm_notes, old.player_summary, old.player_notes);
END;

CREATE TRIGGER IF NOT EXISTS assets_au AFTER UPDATE ON assets BEGIN
    INSERT INTO assets_fts(assets_fts, rowid, name, gm_summary, gm_notes, player_summary, player_notes)
    VALUES ('delete', old.rowid, old.name, old.gm_summary, old.gm_notes, old.player_summary, old.player_notes);
    INSERT INTO assets_fts(rowid, name, gm_summary, gm_notes, player_summary, player_notes)
    VALUES (new.rowid, new.name, new.gm_summary, new.gm_notes, new.player_summary, new.player_notes);
END;

-- Embeddings table
CREATE TABLE IF NOT EXISTS asset_embeddings (
    asset_id BLOB PRIMARY KEY,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    content_hash BLOB,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (asset_id) REFERENCES assets(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_embeddings_provider ON asset_embeddings(provider, model);
`

const migrationV1Down = `
-- Drop all tables in reverse order of dependencies
DROP TRIGGER IF EXISTS assets_au;
DROP TRIGGER IF EXISTS assets_ad;
DROP TRIGGER IF EXISTS assets_ai;

DROP TABLE IF EXISTS asset_embeddings;
DROP TABLE IF EXISTS assets_fts;
DROP TABLE IF EXISTS assets;
DROP TABLE IF EXISTS campaigns;
DROP TABLE IF EXISTS schema_version;
`

const migrationV11Up = `
-- One row per search request; quality columns are NULL unless sampled
CREATE TABLE IF NOT EXISTS search_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    search_type TEXT NOT NULL,
    search_mode TEXT NOT NULL,
    campaign_id BLOB NOT NULL,
    has_results BOOLEAN NOT NULL,
    result_count INTEGER NOT NULL,
    requested_limit INTEGER NOT NULL,
    min_score REAL NOT NULL,
    execution_time_ms REAL NOT NULL,
    embedding_time_ms REAL NOT NULL,
    vector_search_time_ms REAL NOT NULL,
    conversion_time_ms REAL NOT NULL,
    query TEXT NOT NULL DEFAULT '',
    query_length INTEGER NOT NULL,
    sampled BOOLEAN NOT NULL DEFAULT 0,
    precision_at_k REAL,
    recall_at_k REAL,
    f1_at_k REAL,
    precision_at_200 REAL,
    recall_at_200 REAL,
    f1_at_200 REAL,
    coverage_ratio REAL,
    total_assets INTEGER,
    score_distribution TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_metrics_campaign ON search_metrics(campaign_id, created_at);
CREATE INDEX IF NOT EXISTS idx_search_metrics_sampled ON search_metrics(sampled);
`

const migrationV11Down = `
DROP TABLE IF EXISTS search_metrics;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, err := appliedVersion(ctx, db)
	if err != nil {
		return err
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// appliedVersion returns the highest recorded schema version, or 0.0.0 when
// no migration has run. Versions are compared semantically because several
// migrations can share the same applied_at second.
func appliedVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	current := semver.MustParse("0.0.0")

	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return current, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", raw, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := appliedVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range AllMigrations {
		if semver.MustParse(AllMigrations[i].Version).Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	// The first migration drops schema_version itself
	if migration.Version == AllMigrations[0].Version {
		return nil
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}
	return nil
}
