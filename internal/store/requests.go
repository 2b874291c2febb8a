package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doublejdg/stockroom/internal/model"
)

const requestColumns = `id, item_id, item_name, category, quantity, unit, requestor_name,
	requestor_username, status, decided_by, created_at, updated_at`

// CreateRequest stores a new request in PENDING status.
func CreateRequest(ctx context.Context, db *sql.DB, r model.Request) (*model.Request, error) {
	if r.Quantity <= 0 {
		return nil, model.ErrInvalidQuantity
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = r.CreatedAt
	r.Status = model.StatusPending

	_, err := db.ExecContext(ctx,
		`INSERT INTO requests (`+requestColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ItemID, r.ItemName, r.Category, r.Quantity, r.Unit, r.RequestorName,
		r.RequestorUsername, r.Status, nullString(r.DecidedBy), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return &r, nil
}

// GetRequest returns a request by ID.
func GetRequest(ctx context.Context, db *sql.DB, id string) (*model.Request, error) {
	row := db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return r, nil
}

// ListRequests returns requests matching filter, newest first.
func ListRequests(ctx context.Context, db *sql.DB, filter model.RequestFilter) ([]model.Request, error) {
	var where []string
	var args []any

	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Statuses)), ",")
		where = append(where, "status IN ("+placeholders+")")
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}
	if filter.RequestorUsername != "" {
		where = append(where, "requestor_username = ?")
		args = append(args, filter.RequestorUsername)
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// TransitionRequest moves a request from one status to another. The update
// only applies while the request is still in the from status, so two
// concurrent decisions on the same request cannot both succeed.
func TransitionRequest(ctx context.Context, db *sql.DB, id, from, to, decidedBy string) (*model.Request, error) {
	if !model.CanTransition(from, to) {
		return nil, model.ErrInvalidTransition
	}

	result, err := db.ExecContext(ctx,
		`UPDATE requests SET status = ?, decided_by = COALESCE(?, decided_by), updated_at = ?
		 WHERE id = ? AND status = ?`,
		to, nullString(decidedBy), time.Now().UTC(), id, from,
	)
	if err != nil {
		return nil, fmt.Errorf("transitioning request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transitioning request: %w", err)
	}

	if n == 0 {
		existing, err := GetRequest(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, model.ErrRequestNotFound
		}
		return nil, model.ErrInvalidTransition
	}

	return GetRequest(ctx, db, id)
}

func scanRequest(row rowScanner) (*model.Request, error) {
	r := &model.Request{}
	var decidedBy sql.NullString
	if err := row.Scan(&r.ID, &r.ItemID, &r.ItemName, &r.Category, &r.Quantity, &r.Unit,
		&r.RequestorName, &r.RequestorUsername, &r.Status, &decidedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.DecidedBy = decidedBy.String
	return r, nil
}
