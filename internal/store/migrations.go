package store

import "github.com/cockroachdb/errors"

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Manifests table - index of the manifests found in the plugin directory
		`CREATE TABLE IF NOT EXISTS manifests (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			version TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			dir TEXT NOT NULL,
			document TEXT NOT NULL,
			indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Invocations table - one row per plugin Process call made by the host
		`CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			plugin_id TEXT NOT NULL,
			plugin_version TEXT NOT NULL DEFAULT '',
			data_type TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_manifests_category ON manifests(category)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_plugin_id ON invocations(plugin_id, created_at)`,
	}

	for i, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return errors.Wrapf(err, "migration %d", i)
		}
	}

	return nil
}
