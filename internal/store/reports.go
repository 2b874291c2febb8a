package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/doublejdg/stockroom/internal/model"
)

// AppendReport appends an audit report. Reports are never updated or deleted.
func AppendReport(ctx context.Context, db *sql.DB, r model.Report) (*model.Report, error) {
	if r.Quantity <= 0 {
		return nil, fmt.Errorf("report quantity must be positive")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Date == "" {
		r.Date = r.CreatedAt.Format(model.DateLayout)
	}

	var unitPrice sql.NullString
	if r.UnitPrice != nil {
		unitPrice = sql.NullString{String: r.UnitPrice.String(), Valid: true}
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO reports (id, name, type, quantity, unit_price, date, note, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Type, r.Quantity, unitPrice, r.Date, nullString(r.Note), nullString(r.Actor), r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("appending report: %w", err)
	}
	return &r, nil
}

// ListReports returns all reports, newest first.
func ListReports(ctx context.Context, db *sql.DB) ([]model.Report, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, type, quantity, unit_price, date, note, actor, created_at
		 FROM reports ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		var unitPrice, note, actor sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.Quantity, &unitPrice, &r.Date, &note, &actor, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		if unitPrice.Valid {
			price, err := decimal.NewFromString(unitPrice.String)
			if err != nil {
				return nil, fmt.Errorf("parsing unit price: %w", err)
			}
			r.UnitPrice = &price
		}
		r.Note = note.String
		r.Actor = actor.String
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
