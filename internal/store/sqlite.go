package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/doublejdg/stockroom/internal/model"
)

// SQLite binds the package functions to a database handle so the store can
// be passed around as a repository.
type SQLite struct {
	DB *sql.DB
}

// NewSQLite returns a repository backed by db.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db}
}

func (s *SQLite) Close() error { return s.DB.Close() }

func (s *SQLite) ListItems(ctx context.Context) ([]model.Item, error) {
	return ListItems(ctx, s.DB)
}

func (s *SQLite) GetItem(ctx context.Context, id string) (*model.Item, error) {
	return GetItem(ctx, s.DB, id)
}

func (s *SQLite) CreateItem(ctx context.Context, item model.Item) (*model.Item, error) {
	return CreateItem(ctx, s.DB, item)
}

func (s *SQLite) AdjustItemQuantity(ctx context.Context, id string, delta int) (*model.Item, error) {
	return AdjustItemQuantity(ctx, s.DB, id, delta)
}

func (s *SQLite) AppendReport(ctx context.Context, r model.Report) (*model.Report, error) {
	return AppendReport(ctx, s.DB, r)
}

func (s *SQLite) ListReports(ctx context.Context) ([]model.Report, error) {
	return ListReports(ctx, s.DB)
}

func (s *SQLite) CreateRequest(ctx context.Context, r model.Request) (*model.Request, error) {
	return CreateRequest(ctx, s.DB, r)
}

func (s *SQLite) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	return GetRequest(ctx, s.DB, id)
}

func (s *SQLite) ListRequests(ctx context.Context, filter model.RequestFilter) ([]model.Request, error) {
	return ListRequests(ctx, s.DB, filter)
}

func (s *SQLite) TransitionRequest(ctx context.Context, id, from, to, decidedBy string) (*model.Request, error) {
	return TransitionRequest(ctx, s.DB, id, from, to, decidedBy)
}

func (s *SQLite) CreateAccount(ctx context.Context, a model.Account) (*model.Account, error) {
	return CreateAccount(ctx, s.DB, a)
}

func (s *SQLite) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return GetAccountByUsername(ctx, s.DB, username)
}

func (s *SQLite) ListAccounts(ctx context.Context, role string) ([]model.Account, error) {
	return ListAccounts(ctx, s.DB, role)
}

func (s *SQLite) UpdateAccountRole(ctx context.Context, username, role string) error {
	return UpdateAccountRole(ctx, s.DB, username, role)
}

func (s *SQLite) UpdateAccountPassword(ctx context.Context, username, passwordHash string) error {
	return UpdateAccountPassword(ctx, s.DB, username, passwordHash)
}

func (s *SQLite) UpdatePushToken(ctx context.Context, username, token string) error {
	return UpdatePushToken(ctx, s.DB, username, token)
}

func (s *SQLite) SetAccountImage(ctx context.Context, username, uri string, data []byte, mime string) error {
	return SetAccountImage(ctx, s.DB, username, uri, data, mime)
}

func (s *SQLite) GetAccountImage(ctx context.Context, username string) ([]byte, string, error) {
	return GetAccountImage(ctx, s.DB, username)
}

func (s *SQLite) AppendAudit(ctx context.Context, entry model.AuditLog) (*model.AuditLog, error) {
	return AppendAudit(ctx, s.DB, entry)
}

func (s *SQLite) ListAudit(ctx context.Context, limit int) ([]model.AuditLog, error) {
	return ListAudit(ctx, s.DB, limit)
}

func (s *SQLite) JWTSecret(ctx context.Context) (string, error) {
	return JWTSecret(ctx, s.DB)
}

func (s *SQLite) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	return RevokeToken(ctx, s.DB, jti, expiresAt)
}

func (s *SQLite) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return IsTokenRevoked(ctx, s.DB, jti)
}
