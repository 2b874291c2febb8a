// Package reconcile implements the stock reconciliation workflow: resolving
// scans to items, adjusting quantities with an audit trail, the borrow
// request lifecycle and the merged activity feed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doublejdg/stockroom/internal/feed"
	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/notify"
)

// ItemRepository stores inventory items.
type ItemRepository interface {
	ListItems(ctx context.Context) ([]model.Item, error)
	GetItem(ctx context.Context, id string) (*model.Item, error)
	CreateItem(ctx context.Context, item model.Item) (*model.Item, error)
	// AdjustItemQuantity applies delta only if the result stays
	// non-negative, otherwise it returns model.ErrInsufficientStock.
	AdjustItemQuantity(ctx context.Context, id string, delta int) (*model.Item, error)
}

// ReportRepository stores the append-only report log.
type ReportRepository interface {
	AppendReport(ctx context.Context, r model.Report) (*model.Report, error)
	ListReports(ctx context.Context) ([]model.Report, error)
}

// RequestRepository stores borrow requests.
type RequestRepository interface {
	CreateRequest(ctx context.Context, r model.Request) (*model.Request, error)
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	ListRequests(ctx context.Context, filter model.RequestFilter) ([]model.Request, error)
	// TransitionRequest changes status only while the request is still in
	// the from status.
	TransitionRequest(ctx context.Context, id, from, to, decidedBy string) (*model.Request, error)
}

// AccountRepository stores staff accounts.
type AccountRepository interface {
	CreateAccount(ctx context.Context, a model.Account) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	ListAccounts(ctx context.Context, role string) ([]model.Account, error)
	UpdateAccountRole(ctx context.Context, username, role string) error
	UpdateAccountPassword(ctx context.Context, username, passwordHash string) error
	UpdatePushToken(ctx context.Context, username, token string) error
	SetAccountImage(ctx context.Context, username, uri string, data []byte, mime string) error
	GetAccountImage(ctx context.Context, username string) ([]byte, string, error)
}

// AuditRepository stores account events.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry model.AuditLog) (*model.AuditLog, error)
	ListAudit(ctx context.Context, limit int) ([]model.AuditLog, error)
}

// Repository is everything the engine needs from a storage backend.
type Repository interface {
	ItemRepository
	ReportRepository
	RequestRepository
	AccountRepository
	AuditRepository
}

// Notifier delivers a message to an account.
type Notifier interface {
	Notify(ctx context.Context, to model.Account, msg notify.Message) error
}

// ImageUploader hosts an image and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, key string, data []byte, mime string) (string, error)
}

// DefaultScanCooldown is how long scans from the same actor are ignored
// after a successful scan.
const DefaultScanCooldown = 2 * time.Second

// Engine runs reconciliation operations against a repository.
type Engine struct {
	Repo     Repository
	Notifier Notifier
	Events   *feed.Broker
	// Images hosts profile images. When nil, images are stored in the
	// repository.
	Images ImageUploader

	scans   *Debouncer
	now     func() time.Time
	pending sync.WaitGroup
}

// New creates an engine. A nil broker is replaced by a fresh one.
func New(repo Repository, notifier Notifier, events *feed.Broker) *Engine {
	if events == nil {
		events = feed.NewBroker()
	}
	e := &Engine{
		Repo:     repo,
		Notifier: notifier,
		Events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
	e.scans = NewDebouncer(DefaultScanCooldown, e.clock)
	return e
}

// NotifyTimeout bounds the delivery of one batch of notifications.
const NotifyTimeout = 30 * time.Second

// SetScanCooldown changes the per-actor scan cooldown. Zero disables it.
func (e *Engine) SetScanCooldown(d time.Duration) {
	e.scans = NewDebouncer(d, e.clock)
}

// Watch streams change events visible to an account with the given
// username and role until ctx is done.
func (e *Engine) Watch(ctx context.Context, username, role string, collections ...string) <-chan feed.Event {
	return e.Events.Subscribe(ctx, feed.ForUser(username, role, collections...))
}

// Flush waits for notifications still being delivered in the background.
func (e *Engine) Flush() {
	e.pending.Wait()
}

func (e *Engine) clock() time.Time { return e.now() }

var domainErrors = []error{
	model.ErrInvalidCredentials,
	model.ErrDuplicateUsername,
	model.ErrAccountNotFound,
	model.ErrItemNotFound,
	model.ErrInsufficientStock,
	model.ErrInvalidQuantity,
	model.ErrRequestNotFound,
	model.ErrInvalidTransition,
	model.ErrScanIgnored,
	model.ErrInvalidInput,
	model.ErrBackend,
}

// backendErr passes domain errors through and marks anything else as a
// backend failure.
func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrBackend, err)
}

// Event audiences for data that not every role may list.
var (
	staffRoles = []string{model.RoleOwner, model.RoleManager}
	ownerRoles = []string{model.RoleOwner}
)

// publish broadcasts a change to every subscriber.
func (e *Engine) publish(collection, op, id string, data any) {
	e.Events.Publish(feed.Event{Collection: collection, Op: op, ID: id, Data: data})
}

// publishTo sends a change to username and to accounts holding one of roles.
func (e *Engine) publishTo(collection, op, id string, data any, username string, roles []string) {
	e.Events.Publish(feed.Event{Collection: collection, Op: op, ID: id, Data: data, Username: username, Roles: roles})
}

func (e *Engine) publishRequest(op string, r *model.Request) {
	e.publishTo(feed.CollectionRequests, op, r.ID, r, r.RequestorUsername, staffRoles)
}

func (e *Engine) publishReport(r *model.Report) {
	e.publishTo(feed.CollectionReports, feed.OpCreate, r.ID, r, "", staffRoles)
}

// dispatch runs fn in the background with a context that outlives the
// caller's request but is bounded by NotifyTimeout.
func (e *Engine) dispatch(ctx context.Context, fn func(ctx context.Context)) {
	if e.Notifier == nil {
		return
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), NotifyTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// notifyAccount delivers msg, logging failures. Notifications never fail
// the operation that triggered them.
func (e *Engine) notifyAccount(ctx context.Context, to model.Account, msg notify.Message) {
	if err := e.Notifier.Notify(ctx, to, msg); err != nil {
		slog.Warn("notification failed", "to", to.Username, "title", msg.Title, "error", err)
	}
}

func (e *Engine) notifyUsername(ctx context.Context, username string, msg notify.Message) {
	e.dispatch(ctx, func(ctx context.Context) {
		account, err := e.Repo.GetAccountByUsername(ctx, username)
		if err != nil {
			slog.Warn("looking up notification recipient", "username", username, "error", err)
			return
		}
		if account == nil {
			return
		}
		e.notifyAccount(ctx, *account, msg)
	})
}

func (e *Engine) notifyOwners(ctx context.Context, msg notify.Message) {
	e.dispatch(ctx, func(ctx context.Context) {
		owners, err := e.Repo.ListAccounts(ctx, model.RoleOwner)
		if err != nil {
			slog.Warn("listing owners for notification", "error", err)
			return
		}
		for _, owner := range owners {
			e.notifyAccount(ctx, owner, msg)
		}
	})
}
