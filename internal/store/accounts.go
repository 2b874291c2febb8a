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

const accountColumns = `id, username, password_hash, name, role, position, image_uri, push_token, created_at`

// CreateAccount creates a new account. Usernames are unique.
func CreateAccount(ctx context.Context, db *sql.DB, a model.Account) (*model.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, password_hash, name, role, position, image_uri, push_token, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.PasswordHash, a.Name, a.Role,
		nullString(a.Position), nullString(a.ImageURI), nullString(a.PushToken), a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return GetAccountByUsername(ctx, db, a.Username)
}

// GetAccountByUsername returns an account by username.
func GetAccountByUsername(ctx context.Context, db *sql.DB, username string) (*model.Account, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username,
	)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account by username: %w", err)
	}
	return a, nil
}

// ListAccounts returns all accounts, optionally filtered by role.
func ListAccounts(ctx context.Context, db *sql.DB, role string) ([]model.Account, error) {
	var rows *sql.Rows
	var err error

	if role != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE role = ? ORDER BY username`, role,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+accountColumns+` FROM accounts ORDER BY username`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateAccountRole changes an account's role.
func UpdateAccountRole(ctx context.Context, db *sql.DB, username, role string) error {
	return updateAccount(ctx, db, "updating account role",
		`UPDATE accounts SET role = ? WHERE username = ?`, role, username)
}

// UpdateAccountPassword replaces an account's password hash.
func UpdateAccountPassword(ctx context.Context, db *sql.DB, username, passwordHash string) error {
	return updateAccount(ctx, db, "updating account password",
		`UPDATE accounts SET password_hash = ? WHERE username = ?`, passwordHash, username)
}

// UpdatePushToken stores the device token used for push notifications.
func UpdatePushToken(ctx context.Context, db *sql.DB, username, token string) error {
	return updateAccount(ctx, db, "updating push token",
		`UPDATE accounts SET push_token = ? WHERE username = ?`, nullString(token), username)
}

// SetAccountImage sets an account's profile image reference and, when data
// is non-nil, the image bytes themselves.
func SetAccountImage(ctx context.Context, db *sql.DB, username, uri string, data []byte, mime string) error {
	return updateAccount(ctx, db, "setting account image",
		`UPDATE accounts SET image_uri = ?, image = ?, image_mime = ? WHERE username = ?`,
		nullString(uri), data, nullString(mime), username)
}

// GetAccountImage returns a stored profile image and its MIME type.
func GetAccountImage(ctx context.Context, db *sql.DB, username string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM accounts WHERE username = ?`, username,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting account image: %w", err)
	}
	return image, mime.String, nil
}

func updateAccount(ctx context.Context, db *sql.DB, op, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	a := &model.Account{}
	var position, imageURI, pushToken sql.NullString
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Name, &a.Role,
		&position, &imageURI, &pushToken, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Position = position.String
	a.ImageURI = imageURI.String
	a.PushToken = pushToken.String
	return a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
