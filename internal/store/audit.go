package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doublejdg/stockroom/internal/model"
)

// AppendAudit records an account event.
func AppendAudit(ctx context.Context, db *sql.DB, entry model.AuditLog) (*model.AuditLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor, action, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Actor, entry.Action, nullString(entry.Details), entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("appending audit log: %w", err)
	}
	return &entry, nil
}

// ListAudit returns the most recent audit entries, newest first.
// A non-positive limit returns everything.
func ListAudit(ctx context.Context, db *sql.DB, limit int) ([]model.AuditLog, error) {
	query := `SELECT id, actor, action, details, created_at FROM audit_logs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLog
	for rows.Next() {
		var e model.AuditLog
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit log: %w", err)
		}
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
