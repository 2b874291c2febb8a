package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/doublejdg/stockroom/internal/auth"
	"github.com/doublejdg/stockroom/internal/feed"
	"github.com/doublejdg/stockroom/internal/imaging"
	"github.com/doublejdg/stockroom/internal/model"
)

// Registration is the self-service signup form.
type Registration struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Position string `json:"position"`
}

// Register creates an employee account.
func (e *Engine) Register(ctx context.Context, reg Registration) (*model.Account, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Name = strings.TrimSpace(reg.Name)
	if reg.Username == "" || reg.Name == "" {
		return nil, fmt.Errorf("%w: name and username are required", model.ErrInvalidInput)
	}
	if err := model.ValidatePassword(reg.Password); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}

	return e.CreateAccount(ctx, reg, model.RoleEmployee, reg.Username)
}

// CreateAccount creates an account with the given role. It backs both
// self-registration and owner seeding.
func (e *Engine) CreateAccount(ctx context.Context, reg Registration, role, actor string) (*model.Account, error) {
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("%w: invalid role %q", model.ErrInvalidInput, role)
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	account, err := e.Repo.CreateAccount(ctx, model.Account{
		Username:     reg.Username,
		PasswordHash: hash,
		Name:         reg.Name,
		Role:         role,
		Position:     reg.Position,
		CreatedAt:    e.now(),
	})
	if err != nil {
		return nil, backendErr("creating account", err)
	}

	e.audit(ctx, actor, model.AuditRegister, fmt.Sprintf("%s (%s)", account.Username, account.Role))
	e.publishTo(feed.CollectionAccounts, feed.OpCreate, account.ID, account, account.Username, ownerRoles)
	slog.Info("account created", "username", account.Username, "role", account.Role)

	return account, nil
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both return model.ErrInvalidCredentials.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (*model.Account, error) {
	account, err := e.Repo.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, backendErr("getting account", err)
	}
	if account == nil || !auth.CheckPassword(account.PasswordHash, password) {
		return nil, model.ErrInvalidCredentials
	}

	e.audit(ctx, account.Username, model.AuditLogin, "")
	return account, nil
}

// Account returns an account by username.
func (e *Engine) Account(ctx context.Context, username string) (*model.Account, error) {
	account, err := e.Repo.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, backendErr("getting account", err)
	}
	if account == nil {
		return nil, model.ErrAccountNotFound
	}
	return account, nil
}

// Logout records that username signed out. Token revocation is handled
// by the caller.
func (e *Engine) Logout(ctx context.Context, username string) {
	e.audit(ctx, username, model.AuditLogout, "")
}

// ChangePassword replaces a password after checking the current one.
func (e *Engine) ChangePassword(ctx context.Context, username, current, next string) error {
	account, err := e.Repo.GetAccountByUsername(ctx, username)
	if err != nil {
		return backendErr("getting account", err)
	}
	if account == nil || !auth.CheckPassword(account.PasswordHash, current) {
		return model.ErrInvalidCredentials
	}
	if err := model.ValidatePassword(next); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	if err := e.Repo.UpdateAccountPassword(ctx, account.Username, hash); err != nil {
		return backendErr("updating password", err)
	}
	e.audit(ctx, account.Username, model.AuditPasswordChange, "")
	return nil
}

// SetPassword replaces a password without checking the current one.
func (e *Engine) SetPassword(ctx context.Context, username, password string) error {
	if err := model.ValidatePassword(password); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := e.Repo.UpdateAccountPassword(ctx, username, hash); err != nil {
		return backendErr("updating password", err)
	}
	e.audit(ctx, username, model.AuditPasswordChange, "reset")
	return nil
}

// UpdatePushToken registers the device that should receive username's
// push notifications. An empty token unregisters it.
func (e *Engine) UpdatePushToken(ctx context.Context, username, token string) error {
	if err := e.Repo.UpdatePushToken(ctx, username, strings.TrimSpace(token)); err != nil {
		return backendErr("updating push token", err)
	}
	return nil
}

// UpdateProfileImage processes an uploaded photo and stores it, on the
// image host when one is configured and in the repository otherwise.
// It returns the new image URI.
func (e *Engine) UpdateProfileImage(ctx context.Context, username string, data []byte) (string, error) {
	avatar, err := imaging.ProcessAvatar(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}

	if e.Images != nil {
		key := fmt.Sprintf("avatars/%s-%d.jpg", username, e.now().Unix())
		uri, err := e.Images.Upload(ctx, key, avatar.Data, avatar.MIME)
		if err != nil {
			return "", backendErr("uploading image", err)
		}
		if err := e.Repo.SetAccountImage(ctx, username, uri, nil, ""); err != nil {
			return "", backendErr("setting account image", err)
		}
		return uri, nil
	}

	uri := "/api/accounts/" + username + "/image"
	if err := e.Repo.SetAccountImage(ctx, username, uri, avatar.Data, avatar.MIME); err != nil {
		return "", backendErr("setting account image", err)
	}
	return uri, nil
}

// ProfileImage returns a repository-stored profile image.
func (e *Engine) ProfileImage(ctx context.Context, username string) ([]byte, string, error) {
	data, mime, err := e.Repo.GetAccountImage(ctx, username)
	if err != nil {
		return nil, "", backendErr("getting account image", err)
	}
	return data, mime, nil
}

// ListAccounts returns accounts, optionally limited to one role.
func (e *Engine) ListAccounts(ctx context.Context, role string) ([]model.Account, error) {
	accounts, err := e.Repo.ListAccounts(ctx, role)
	if err != nil {
		return nil, backendErr("listing accounts", err)
	}
	return accounts, nil
}

// SetRole changes an account's role.
func (e *Engine) SetRole(ctx context.Context, owner model.Account, username, role string) error {
	if !model.ValidRole(role) {
		return fmt.Errorf("%w: invalid role %q", model.ErrInvalidInput, role)
	}
	if err := e.Repo.UpdateAccountRole(ctx, username, role); err != nil {
		return backendErr("updating role", err)
	}
	e.audit(ctx, owner.Username, model.AuditRoleChange, fmt.Sprintf("%s -> %s", username, role))
	e.publishTo(feed.CollectionAccounts, feed.OpUpdate, username, map[string]string{"username": username, "role": role}, username, ownerRoles)
	slog.Info("role changed", "username", username, "role", role, "owner", owner.Username)
	return nil
}

// ListAudit returns recent account events, newest first.
func (e *Engine) ListAudit(ctx context.Context, limit int) ([]model.AuditLog, error) {
	entries, err := e.Repo.ListAudit(ctx, limit)
	if err != nil {
		return nil, backendErr("listing audit log", err)
	}
	return entries, nil
}

// audit records an account event. Failures are logged and otherwise
// ignored.
func (e *Engine) audit(ctx context.Context, actor, action, details string) {
	if _, err := e.Repo.AppendAudit(ctx, model.AuditLog{
		Actor:     actor,
		Action:    action,
		Details:   details,
		CreatedAt: e.now(),
	}); err != nil {
		slog.Warn("audit log not recorded", "actor", actor, "action", action, "error", err)
	}
}
