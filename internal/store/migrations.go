package store

const (
	tablePreferences = "preferences"
	tableSecure      = "secure_preferences"
)

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Preferences - one JSON value per extension and key
		`CREATE TABLE IF NOT EXISTS preferences (
			extension TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (extension, key)
		)`,

		// Secure preferences - same shape, never listed to the frontend
		`CREATE TABLE IF NOT EXISTS secure_preferences (
			extension TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (extension, key)
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
