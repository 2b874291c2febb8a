package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: the owner dashboard and activity feed read reports and
	// requests newest-first; pending requests are filtered by status.
	`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_requestor ON requests(requestor_username)`,
}

// Migrate ensures the schema and then applies migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
