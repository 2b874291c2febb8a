// Package bootstrap assembles a running engine from configuration. It is
// shared by the server and the admin tool.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/doublejdg/stockroom/internal/api"
	"github.com/doublejdg/stockroom/internal/auth"
	"github.com/doublejdg/stockroom/internal/config"
	"github.com/doublejdg/stockroom/internal/db"
	"github.com/doublejdg/stockroom/internal/feed"
	"github.com/doublejdg/stockroom/internal/media"
	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/mongostore"
	"github.com/doublejdg/stockroom/internal/notify"
	"github.com/doublejdg/stockroom/internal/reconcile"
	"github.com/doublejdg/stockroom/internal/store"
)

// Backend is a storage backend: the engine's repository plus token
// bookkeeping.
type Backend interface {
	reconcile.Repository
	api.TokenStore
	JWTSecret(ctx context.Context) (string, error)
	Close() error
}

var (
	_ Backend = (*store.SQLite)(nil)
	_ Backend = (*mongostore.Store)(nil)
)

// OpenBackend opens the configured storage backend. SQLite databases are
// created and migrated as needed.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		database, err := db.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		slog.Info("database ready", "driver", cfg.Driver, "path", cfg.Path)
		return store.NewSQLite(database), nil

	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := mongostore.Open(connectCtx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		slog.Info("database ready", "driver", cfg.Driver, "db", cfg.MongoDB)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewEngine wires an engine to backend with the notifiers, image host and
// scan cooldown named in cfg.
func NewEngine(ctx context.Context, cfg *config.Config, backend Backend) (*reconcile.Engine, error) {
	broker := feed.NewBroker()

	notifiers := notify.Multi{notify.Live{Broker: broker}}
	if cfg.Push.Enabled {
		notifiers = append(notifiers, notify.NewExpo(cfg.Push.Host, cfg.Push.AccessToken))
		slog.Info("push notifications enabled")
	}

	engine := reconcile.New(backend, notifiers, broker)
	engine.SetScanCooldown(cfg.Scan.Cooldown)

	if cfg.S3.Enabled() {
		uploader, err := media.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("setting up image host: %w", err)
		}
		engine.Images = uploader
		slog.Info("profile images hosted on S3", "bucket", cfg.S3.Bucket)
	}

	return engine, nil
}

// JWTSecret returns the configured secret, falling back to the one stored
// by the backend.
func JWTSecret(ctx context.Context, cfg config.AuthConfig, backend Backend) (string, error) {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret, nil
	}
	secret, err := backend.JWTSecret(ctx)
	if err != nil {
		return "", fmt.Errorf("getting JWT secret: %w", err)
	}
	return secret, nil
}

// EnsureOwner creates the first owner account when no owner exists yet.
// It returns the generated password, or an empty string when an owner was
// already present.
func EnsureOwner(ctx context.Context, engine *reconcile.Engine, owner config.OwnerConfig) (string, error) {
	owners, err := engine.ListAccounts(ctx, model.RoleOwner)
	if err != nil {
		return "", err
	}
	if len(owners) > 0 {
		return "", nil
	}

	password, err := auth.GeneratePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	_, err = engine.CreateAccount(ctx, reconcile.Registration{
		Name:     owner.Name,
		Username: owner.Username,
		Password: password,
	}, model.RoleOwner, owner.Username)
	if err != nil {
		return "", fmt.Errorf("creating owner account: %w", err)
	}
	return password, nil
}
