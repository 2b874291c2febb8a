package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doublejdg/stockroom/internal/model"
)

const itemColumns = `id, name, quantity, unit, category, prices, date, created_at, updated_at`

// CreateItem creates a new inventory item.
func CreateItem(ctx context.Context, db *sql.DB, item model.Item) (*model.Item, error) {
	if item.Quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.Date == "" {
		item.Date = item.CreatedAt.Format(model.DateLayout)
	}
	if item.Unit == "" {
		item.Unit = model.DefaultUnit
	}
	item.Category = model.NormalizeCategory(item.Category)

	prices, err := encodePrices(item.Prices)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO items (id, name, quantity, unit, category, prices, date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Quantity, item.Unit, item.Category, prices, item.Date, item.CreatedAt, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, db, item.ID)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	row := db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all items ordered by name.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY name COLLATE NOCASE, created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// AdjustItemQuantity applies a signed delta to an item's quantity.
// The update only applies if the result stays non-negative, so concurrent
// decrements cannot drive stock below zero.
func AdjustItemQuantity(ctx context.Context, db *sql.DB, id string, delta int) (*model.Item, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT quantity FROM items WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, model.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking current quantity: %w", err)
	}

	if current+delta < 0 {
		return nil, model.ErrInsufficientStock
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE items SET quantity = quantity + ?, updated_at = ?
		 WHERE id = ? AND quantity + ? >= 0`,
		delta, time.Now().UTC(), id, delta,
	)
	if err != nil {
		return nil, fmt.Errorf("adjusting quantity: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, model.ErrInsufficientStock
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing adjustment: %w", err)
	}

	return GetItem(ctx, db, id)
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var prices string
	if err := row.Scan(&item.ID, &item.Name, &item.Quantity, &item.Unit, &item.Category,
		&prices, &item.Date, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := decodePrices(prices)
	if err != nil {
		return nil, err
	}
	item.Prices = p
	return item, nil
}

func encodePrices(p model.Prices) (string, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding prices: %w", err)
	}
	return string(data), nil
}

func decodePrices(s string) (model.Prices, error) {
	p := model.Prices{}
	if s == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("decoding prices: %w", err)
	}
	return p, nil
}
