package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/doublejdg/stockroom/internal/feed"
	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/notify"
)

// RequestLine is one item of a borrow request.
type RequestLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Return conditions.
const (
	ConditionGood    = "GOOD"
	ConditionDamaged = "DAMAGED"
)

// Request listing orders.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortStatus = "status"
)

// ErrEmptyRequest is returned when a request names no items.
var ErrEmptyRequest = fmt.Errorf("%w: request has no items", model.ErrInvalidQuantity)

// ErrNotRequestor is returned when someone other than the requestor or an
// owner tries to return a request.
var ErrNotRequestor = errors.New("only the requestor or an owner may return this request")

// CreateRequests submits one PENDING request per line on behalf of
// requestor. Every line is validated against current stock before any
// request is stored.
func (e *Engine) CreateRequests(ctx context.Context, requestor model.Account, lines []RequestLine) ([]model.Request, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyRequest
	}

	items := make([]*model.Item, len(lines))
	for i, line := range lines {
		if line.Quantity < 1 {
			return nil, model.ErrInvalidQuantity
		}
		item, err := e.Repo.GetItem(ctx, line.ItemID)
		if err != nil {
			return nil, backendErr("getting item", err)
		}
		if item == nil {
			return nil, model.ErrItemNotFound
		}
		if line.Quantity > item.Quantity {
			return nil, model.ErrInsufficientStock
		}
		items[i] = item
	}

	created := make([]model.Request, 0, len(lines))
	for i, line := range lines {
		item := items[i]
		r, err := e.Repo.CreateRequest(ctx, model.Request{
			ItemID:            item.ID,
			ItemName:          item.Name,
			Category:          item.Category,
			Quantity:          line.Quantity,
			Unit:              item.Unit,
			RequestorName:     requestor.Name,
			RequestorUsername: requestor.Username,
			Status:            model.StatusPending,
			CreatedAt:         e.now(),
		})
		if err != nil {
			return created, backendErr("creating request", err)
		}
		created = append(created, *r)
		e.publishRequest(feed.OpCreate, r)
	}

	slog.Info("requests submitted", "requestor", requestor.Username, "lines", len(created))

	e.notifyOwners(ctx, notify.Message{
		Title: "New Request",
		Body:  fmt.Sprintf("%s requested %d item(s).", requestor.Name, len(created)),
		Data:  map[string]string{"type": "request"},
	})

	return created, nil
}

// Approve approves a PENDING request and takes the requested quantity out
// of stock. Nothing changes when stock is insufficient. If another
// decision lands between the stock change and the status change, the
// stock is restored and model.ErrInvalidTransition returned.
func (e *Engine) Approve(ctx context.Context, owner model.Account, requestID string) (*model.Request, error) {
	req, err := e.pendingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	item, err := e.Repo.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, backendErr("getting item", err)
	}
	if item == nil {
		return nil, model.ErrItemNotFound
	}
	if item.Quantity < req.Quantity {
		return nil, model.ErrInsufficientStock
	}

	item, err = e.Repo.AdjustItemQuantity(ctx, req.ItemID, -req.Quantity)
	if err != nil {
		return nil, backendErr("deducting stock", err)
	}

	approved, err := e.Repo.TransitionRequest(ctx, req.ID, model.StatusPending, model.StatusApproved, owner.Username)
	if err != nil {
		if _, restoreErr := e.Repo.AdjustItemQuantity(ctx, req.ItemID, req.Quantity); restoreErr != nil {
			slog.Error("restoring stock after failed approval", "request", req.ID, "item", req.ItemName,
				"quantity", req.Quantity, "error", restoreErr)
		}
		return nil, backendErr("approving request", err)
	}

	e.publish(feed.CollectionInventory, feed.OpUpdate, item.ID, item)
	e.publishRequest(feed.OpUpdate, approved)

	slog.Info("request approved", "request", approved.ID, "item", approved.ItemName,
		"quantity", approved.Quantity, "stock", item.Quantity, "owner", owner.Username)

	e.notifyUsername(ctx, approved.RequestorUsername, notify.Message{
		Title: "Request Approved",
		Body:  fmt.Sprintf("Your request for %d %s %s was approved.", approved.Quantity, approved.Unit, approved.ItemName),
		Data:  map[string]string{"type": "request", "id": approved.ID},
	})

	return approved, nil
}

// Decline declines a PENDING request. Stock is untouched.
func (e *Engine) Decline(ctx context.Context, owner model.Account, requestID string) (*model.Request, error) {
	if _, err := e.pendingRequest(ctx, requestID); err != nil {
		return nil, err
	}

	declined, err := e.Repo.TransitionRequest(ctx, requestID, model.StatusPending, model.StatusDeclined, owner.Username)
	if err != nil {
		return nil, backendErr("declining request", err)
	}
	e.publishRequest(feed.OpUpdate, declined)

	slog.Info("request declined", "request", declined.ID, "item", declined.ItemName, "owner", owner.Username)

	e.notifyUsername(ctx, declined.RequestorUsername, notify.Message{
		Title: "Request Declined",
		Body:  fmt.Sprintf("Your request for %d %s %s was declined.", declined.Quantity, declined.Unit, declined.ItemName),
		Data:  map[string]string{"type": "request", "id": declined.ID},
	})

	return declined, nil
}

// ReturnResult is the request after a return and the report recorded for it.
type ReturnResult struct {
	Request *model.Request `json:"request"`
	Item    *model.Item    `json:"item,omitempty"`
	Report  *model.Report  `json:"report,omitempty"`
}

// Return closes an APPROVED equipment request. A GOOD return puts the
// quantity back in stock; a DAMAGED return does not and alerts owners.
// Either way one report is appended after the status change.
func (e *Engine) Return(ctx context.Context, actor model.Account, requestID, condition string) (*ReturnResult, error) {
	if condition != ConditionGood && condition != ConditionDamaged {
		return nil, fmt.Errorf("%w: unknown return condition %q", model.ErrInvalidInput, condition)
	}

	req, err := e.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, backendErr("getting request", err)
	}
	if req == nil {
		return nil, model.ErrRequestNotFound
	}
	if actor.Role != model.RoleOwner && actor.Username != req.RequestorUsername {
		return nil, ErrNotRequestor
	}
	if req.Status != model.StatusApproved || req.Category != model.CategoryEquipment {
		return nil, model.ErrInvalidTransition
	}

	to := model.StatusReturned
	if condition == ConditionDamaged {
		to = model.StatusDamaged
	}

	updated, err := e.Repo.TransitionRequest(ctx, req.ID, model.StatusApproved, to, "")
	if err != nil {
		return nil, backendErr("returning request", err)
	}
	e.publishRequest(feed.OpUpdate, updated)

	result := &ReturnResult{Request: updated}
	report := model.Report{
		Name:      req.ItemName,
		Quantity:  req.Quantity,
		Actor:     actor.Username,
		CreatedAt: e.now(),
	}

	if condition == ConditionGood {
		item, err := e.Repo.AdjustItemQuantity(ctx, req.ItemID, req.Quantity)
		if err != nil {
			slog.Error("returned stock not restored", "request", req.ID, "item", req.ItemName,
				"quantity", req.Quantity, "error", err)
			return result, backendErr("restocking returned item", err)
		}
		result.Item = item
		e.publish(feed.CollectionInventory, feed.OpUpdate, item.ID, item)
		report.Type = model.ReportReturned
	} else {
		report.Type = model.ReportDamagedReturn
		report.Note = "Reported damaged by " + actor.Name
	}

	appended, err := e.Repo.AppendReport(ctx, report)
	if err != nil {
		slog.Error("report not recorded after return", "request", req.ID, "type", report.Type, "error", err)
		return result, &model.AuditError{Item: result.Item, Err: backendErr("appending report", err)}
	}
	result.Report = appended
	e.publishReport(appended)

	slog.Info("request returned", "request", req.ID, "item", req.ItemName, "condition", condition, "actor", actor.Username)

	if condition == ConditionDamaged {
		e.notifyOwners(ctx, notify.Message{
			Title: "Damaged Return",
			Body:  fmt.Sprintf("%s reported %d %s %s as damaged.", actor.Name, req.Quantity, req.Unit, req.ItemName),
			Data:  map[string]string{"type": "request", "id": req.ID},
		})
	}

	return result, nil
}

// ListRequests returns requests matching filter in the given order.
func (e *Engine) ListRequests(ctx context.Context, filter model.RequestFilter, order string) ([]model.Request, error) {
	requests, err := e.Repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, backendErr("listing requests", err)
	}
	SortRequests(requests, order)
	return requests, nil
}

// SortRequests orders requests newest first (the default), oldest first,
// or by status priority with newest first inside each status.
func SortRequests(requests []model.Request, order string) {
	newer := func(a, b model.Request) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	}

	sort.SliceStable(requests, func(i, j int) bool {
		a, b := requests[i], requests[j]
		switch order {
		case SortOldest:
			return newer(b, a)
		case SortStatus:
			pa, pb := model.StatusPriority(a.Status), model.StatusPriority(b.Status)
			if pa != pb {
				return pa < pb
			}
			return newer(a, b)
		default:
			return newer(a, b)
		}
	})
}

func (e *Engine) pendingRequest(ctx context.Context, id string) (*model.Request, error) {
	req, err := e.Repo.GetRequest(ctx, id)
	if err != nil {
		return nil, backendErr("getting request", err)
	}
	if req == nil {
		return nil, model.ErrRequestNotFound
	}
	if req.Status != model.StatusPending {
		return nil, model.ErrInvalidTransition
	}
	return req, nil
}
