package reconcile

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/notify"
	"github.com/doublejdg/stockroom/internal/store"
)

type requestFixture struct {
	e        *Engine
	repo     *store.SQLite
	notifier *recordingNotifier
	owner    *model.Account
	employee *model.Account
	hammer   *model.Item
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()
	e, repo := newTestEngine(t)
	n := &recordingNotifier{}
	e.Notifier = n
	return &requestFixture{
		e:        e,
		repo:     repo,
		notifier: n,
		owner:    seedAccount(t, e, "owner", model.RoleOwner),
		employee: seedAccount(t, e, "emp", model.RoleEmployee),
		hammer:   seedItem(t, repo, model.Item{Name: "Hammer", Quantity: 5, Category: model.CategoryEquipment}),
	}
}

func (f *requestFixture) submit(t *testing.T, qty int) model.Request {
	t.Helper()
	reqs, err := f.e.CreateRequests(context.Background(), *f.employee, []RequestLine{{ItemID: f.hammer.ID, Quantity: qty}})
	if err != nil {
		t.Fatalf("CreateRequests: %v", err)
	}
	return reqs[0]
}

// sentTo waits for background notifications and returns those delivered
// to username.
func (f *requestFixture) sentTo(username string) []notify.Message {
	f.e.Flush()
	return f.notifier.to(username)
}

func (f *requestFixture) stock(t *testing.T) int {
	t.Helper()
	item, err := f.repo.GetItem(context.Background(), f.hammer.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	return item.Quantity
}

func TestRequestScenarioGoodReturn(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	req := f.submit(t, 2)
	if req.Status != model.StatusPending {
		t.Fatalf("expected PENDING, got %q", req.Status)
	}
	if len(f.sentTo("owner")) != 1 {
		t.Errorf("expected owner to be notified of the new request")
	}

	approved, err := f.e.Approve(ctx, *f.owner, req.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != model.StatusApproved {
		t.Errorf("expected APPROVED, got %q", approved.Status)
	}
	if got := f.stock(t); got != 3 {
		t.Errorf("expected stock 3, got %d", got)
	}
	if len(f.sentTo("emp")) != 1 {
		t.Errorf("expected requestor to be notified of approval")
	}

	result, err := f.e.Return(ctx, *f.employee, req.ID, ConditionGood)
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if result.Request.Status != model.StatusReturned {
		t.Errorf("expected RETURNED, got %q", result.Request.Status)
	}
	if got := f.stock(t); got != 5 {
		t.Errorf("expected stock 5, got %d", got)
	}
	if result.Report.Type != model.ReportReturned || result.Report.Quantity != 2 {
		t.Errorf("unexpected report %+v", result.Report)
	}
}

func TestRequestScenarioDamagedReturn(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	req := f.submit(t, 2)
	if _, err := f.e.Approve(ctx, *f.owner, req.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	before := len(f.sentTo("owner"))

	result, err := f.e.Return(ctx, *f.employee, req.ID, ConditionDamaged)
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if result.Request.Status != model.StatusDamaged {
		t.Errorf("expected DAMAGED, got %q", result.Request.Status)
	}
	if got := f.stock(t); got != 3 {
		t.Errorf("expected stock to remain 3, got %d", got)
	}
	if result.Report.Type != model.ReportDamagedReturn {
		t.Errorf("expected DAMAGED_RETURN, got %q", result.Report.Type)
	}
	if !strings.Contains(result.Report.Note, f.employee.Name) {
		t.Errorf("expected note naming the reporter, got %q", result.Report.Note)
	}
	if len(f.sentTo("owner")) != before+1 {
		t.Errorf("expected owners to be notified of damage")
	}
}

func TestApproveInsufficientStock(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	req := f.submit(t, 4)
	if _, err := f.repo.AdjustItemQuantity(ctx, f.hammer.ID, -3); err != nil {
		t.Fatalf("AdjustItemQuantity: %v", err)
	}

	_, err := f.e.Approve(ctx, *f.owner, req.ID)
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	got, _ := f.repo.GetRequest(ctx, req.ID)
	if got.Status != model.StatusPending {
		t.Errorf("expected PENDING, got %q", got.Status)
	}
	if stock := f.stock(t); stock != 2 {
		t.Errorf("expected stock unchanged at 2, got %d", stock)
	}
}

func TestTerminalStatusesRejectTransitions(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	declined := f.submit(t, 1)
	if _, err := f.e.Decline(ctx, *f.owner, declined.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	returned := f.submit(t, 1)
	f.e.Approve(ctx, *f.owner, returned.ID)
	if _, err := f.e.Return(ctx, *f.employee, returned.ID, ConditionGood); err != nil {
		t.Fatalf("Return: %v", err)
	}

	damaged := f.submit(t, 1)
	f.e.Approve(ctx, *f.owner, damaged.ID)
	if _, err := f.e.Return(ctx, *f.employee, damaged.ID, ConditionDamaged); err != nil {
		t.Fatalf("Return: %v", err)
	}

	stock := f.stock(t)
	for _, id := range []string{declined.ID, returned.ID, damaged.ID} {
		before, _ := f.repo.GetRequest(ctx, id)

		if _, err := f.e.Approve(ctx, *f.owner, id); !errors.Is(err, model.ErrInvalidTransition) {
			t.Errorf("Approve(%s): expected ErrInvalidTransition, got %v", before.Status, err)
		}
		if _, err := f.e.Decline(ctx, *f.owner, id); !errors.Is(err, model.ErrInvalidTransition) {
			t.Errorf("Decline(%s): expected ErrInvalidTransition, got %v", before.Status, err)
		}
		for _, cond := range []string{ConditionGood, ConditionDamaged} {
			if _, err := f.e.Return(ctx, *f.employee, id, cond); !errors.Is(err, model.ErrInvalidTransition) {
				t.Errorf("Return(%s, %s): expected ErrInvalidTransition, got %v", before.Status, cond, err)
			}
		}

		after, _ := f.repo.GetRequest(ctx, id)
		if after.Status != before.Status {
			t.Errorf("status changed from %s to %s", before.Status, after.Status)
		}
	}
	if got := f.stock(t); got != stock {
		t.Errorf("stock changed from %d to %d", stock, got)
	}
}

func TestDeclineLeavesStock(t *testing.T) {
	f := newRequestFixture(t)

	req := f.submit(t, 3)
	declined, err := f.e.Decline(context.Background(), *f.owner, req.ID)
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if declined.Status != model.StatusDeclined || declined.DecidedBy != "owner" {
		t.Errorf("unexpected request %+v", declined)
	}
	if got := f.stock(t); got != 5 {
		t.Errorf("expected stock 5, got %d", got)
	}
}

func TestCreateRequestsValidation(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		lines []RequestLine
		want  error
	}{
		{"empty", nil, model.ErrInvalidQuantity},
		{"zero", []RequestLine{{ItemID: f.hammer.ID, Quantity: 0}}, model.ErrInvalidQuantity},
		{"missing item", []RequestLine{{ItemID: "nope", Quantity: 1}}, model.ErrItemNotFound},
		{"over stock", []RequestLine{{ItemID: f.hammer.ID, Quantity: 6}}, model.ErrInsufficientStock},
		{"one bad line", []RequestLine{{ItemID: f.hammer.ID, Quantity: 1}, {ItemID: f.hammer.ID, Quantity: 9}}, model.ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.e.CreateRequests(ctx, *f.employee, tt.lines)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	all, _ := f.repo.ListRequests(ctx, model.RequestFilter{})
	if len(all) != 0 {
		t.Errorf("expected no requests stored, got %d", len(all))
	}
}

func TestReturnRules(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	other := seedAccount(t, f.e, "other", model.RoleEmployee)

	req := f.submit(t, 1)
	f.e.Approve(ctx, *f.owner, req.ID)

	if _, err := f.e.Return(ctx, *other, req.ID, ConditionGood); !errors.Is(err, ErrNotRequestor) {
		t.Errorf("expected ErrNotRequestor, got %v", err)
	}
	if _, err := f.e.Return(ctx, *f.employee, req.ID, "LOST"); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.e.Return(ctx, *f.employee, "missing", ConditionGood); !errors.Is(err, model.ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound, got %v", err)
	}
	if _, err := f.e.Return(ctx, *f.owner, req.ID, ConditionGood); err != nil {
		t.Errorf("owner should be able to return: %v", err)
	}

	tape := seedItem(t, f.repo, model.Item{Name: "Tape", Quantity: 5})
	reqs, _ := f.e.CreateRequests(ctx, *f.employee, []RequestLine{{ItemID: tape.ID, Quantity: 1}})
	f.e.Approve(ctx, *f.owner, reqs[0].ID)
	if _, err := f.e.Return(ctx, *f.employee, reqs[0].ID, ConditionGood); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("consumables cannot be returned, got %v", err)
	}
}

// racingRepo declines the request behind the engine's back just before
// the approval lands.
type racingRepo struct {
	*store.SQLite
}

func (r racingRepo) TransitionRequest(ctx context.Context, id, from, to, decidedBy string) (*model.Request, error) {
	if to == model.StatusApproved {
		if _, err := r.SQLite.TransitionRequest(ctx, id, model.StatusPending, model.StatusDeclined, "rival"); err != nil {
			return nil, err
		}
	}
	return r.SQLite.TransitionRequest(ctx, id, from, to, decidedBy)
}

func TestApproveLosesRaceRestoresStock(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	req := f.submit(t, 2)

	e := New(racingRepo{f.repo}, nil, nil)
	_, err := e.Approve(ctx, *f.owner, req.ID)
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if got := f.stock(t); got != 5 {
		t.Errorf("expected stock restored to 5, got %d", got)
	}
	got, _ := f.repo.GetRequest(ctx, req.ID)
	if got.Status != model.StatusDeclined {
		t.Errorf("expected the rival decision to stand, got %q", got.Status)
	}
}

func TestSortRequests(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reqs := []model.Request{
		{ID: "a", Status: model.StatusDeclined, CreatedAt: base},
		{ID: "b", Status: model.StatusPending, CreatedAt: base.Add(time.Minute)},
		{ID: "c", Status: model.StatusApproved, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "d", Status: model.StatusPending, CreatedAt: base.Add(3 * time.Minute)},
	}

	order := func(rs []model.Request) string {
		var ids []string
		for _, r := range rs {
			ids = append(ids, r.ID)
		}
		return strings.Join(ids, "")
	}

	tests := []struct {
		mode string
		want string
	}{
		{"", "dcba"},
		{SortNewest, "dcba"},
		{SortOldest, "abcd"},
		{SortStatus, "dbca"},
	}
	for _, tt := range tests {
		rs := append([]model.Request(nil), reqs...)
		SortRequests(rs, tt.mode)
		if got := order(rs); got != tt.want {
			t.Errorf("SortRequests(%q) = %s, want %s", tt.mode, got, tt.want)
		}
	}
}

// blockingNotifier holds every delivery until release is closed.
type blockingNotifier struct {
	release chan struct{}
	done    chan string
}

func (n *blockingNotifier) Notify(ctx context.Context, to model.Account, _ notify.Message) error {
	select {
	case <-n.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	n.done <- to.Username
	return nil
}

func TestNotificationsDoNotBlockRequests(t *testing.T) {
	f := newRequestFixture(t)
	n := &blockingNotifier{release: make(chan struct{}), done: make(chan string, 4)}
	f.e.Notifier = n

	reqCtx, cancel := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		if _, err := f.e.CreateRequests(reqCtx, *f.employee, []RequestLine{{ItemID: f.hammer.ID, Quantity: 1}}); err != nil {
			t.Errorf("CreateRequests: %v", err)
		}
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("CreateRequests waited for notification delivery")
	}

	// Delivery outlives the request that triggered it.
	cancel()
	close(n.release)
	f.e.Flush()

	select {
	case to := <-n.done:
		if to != "owner" {
			t.Errorf("expected owner to be notified, got %q", to)
		}
	default:
		t.Fatal("notification was not delivered")
	}
}

// failingRestock is a repository that cannot put stock back.
type failingRestock struct {
	*store.SQLite
}

func (r failingRestock) AdjustItemQuantity(ctx context.Context, id string, delta int) (*model.Item, error) {
	if delta > 0 {
		return nil, errors.New("connection reset")
	}
	return r.SQLite.AdjustItemQuantity(ctx, id, delta)
}

func TestGoodReturnRestockFailureIsLogged(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	req := f.submit(t, 2)
	if _, err := f.e.Approve(ctx, *f.owner, req.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	broken := New(failingRestock{f.repo}, nil, nil)
	result, err := broken.Return(ctx, *f.employee, req.ID, ConditionGood)
	if !errors.Is(err, model.ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if result == nil || result.Request.Status != model.StatusReturned {
		t.Fatalf("expected the request to be RETURNED, got %+v", result)
	}
	if got := f.stock(t); got != 3 {
		t.Errorf("expected stock to stay 3, got %d", got)
	}

	out := logs.String()
	for _, want := range []string{"returned stock not restored", "request=" + req.ID, "quantity=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}
