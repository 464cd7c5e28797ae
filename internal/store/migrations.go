package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Predictions table - one row per processed frame
		`CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK(status IN ('recognized', 'no_hand', 'error')),
			label TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'http',
			latency_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_label ON predictions(label)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_request_id ON predictions(request_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
