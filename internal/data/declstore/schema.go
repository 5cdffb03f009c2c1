package declstore

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the newest migration this build understands.
const SchemaVersion = 2

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS snapshots (
  id TEXT PRIMARY KEY,
  label TEXT NOT NULL DEFAULT 'default',
  created_at_utc TEXT NOT NULL,
  type_count INTEGER NOT NULL,
  method_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_label ON snapshots(label, created_at_utc);

CREATE TABLE IF NOT EXISTS declared_types (
  snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (snapshot_id, position)
);

CREATE TABLE IF NOT EXISTS type_edges (
  snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  type_position INTEGER NOT NULL,
  relation TEXT NOT NULL CHECK (relation IN ('extends', 'implements', 'uses')),
  position INTEGER NOT NULL,
  target TEXT NOT NULL,
  PRIMARY KEY (snapshot_id, type_position, relation, position)
);

CREATE TABLE IF NOT EXISTS method_slots (
  snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  type_position INTEGER NOT NULL,
  position INTEGER NOT NULL,
  name TEXT NOT NULL,
  visibility TEXT NOT NULL,
  is_abstract INTEGER NOT NULL DEFAULT 0,
  is_static INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (snapshot_id, type_position, position)
);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE snapshots ADD COLUMN override_policy TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS idx_method_slots_name ON method_slots(snapshot_id, name);
`,
	},
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
