package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/doublejdg/stockroom/internal/db"
	"github.com/doublejdg/stockroom/internal/model"
)

func TestCreateAndTransitionRequest(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, model.Item{Name: "Drill", Quantity: 3, Category: model.CategoryEquipment})

	req, err := CreateRequest(ctx, database, model.Request{
		ItemID: item.ID, ItemName: item.Name, Category: item.Category, Quantity: 1, Unit: item.Unit,
		RequestorName: "Bob", RequestorUsername: "bob",
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if req.Status != model.StatusPending {
		t.Errorf("expected PENDING, got %q", req.Status)
	}

	approved, err := TransitionRequest(ctx, database, req.ID, model.StatusPending, model.StatusApproved, "owner")
	if err != nil {
		t.Fatalf("TransitionRequest: %v", err)
	}
	if approved.Status != model.StatusApproved || approved.DecidedBy != "owner" {
		t.Errorf("unexpected request %+v", approved)
	}

	// A second decision from PENDING must lose.
	_, err = TransitionRequest(ctx, database, req.ID, model.StatusPending, model.StatusDeclined, "owner")
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	returned, err := TransitionRequest(ctx, database, req.ID, model.StatusApproved, model.StatusReturned, "")
	if err != nil {
		t.Fatalf("TransitionRequest: %v", err)
	}
	if returned.DecidedBy != "owner" {
		t.Errorf("decided_by should be kept, got %q", returned.DecidedBy)
	}

	_, err = TransitionRequest(ctx, database, "missing", model.StatusPending, model.StatusApproved, "owner")
	if !errors.Is(err, model.ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestListRequestsFilter(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, model.Item{Name: "Tape", Quantity: 10})
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var ids []string
	for i, who := range []string{"bob", "carol", "bob"} {
		r, err := CreateRequest(ctx, database, model.Request{
			ItemID: item.ID, ItemName: item.Name, Category: item.Category, Quantity: 1, Unit: item.Unit,
			RequestorName: who, RequestorUsername: who, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		ids = append(ids, r.ID)
	}
	TransitionRequest(ctx, database, ids[0], model.StatusPending, model.StatusDeclined, "owner")

	all, _ := ListRequests(ctx, database, model.RequestFilter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(all))
	}
	if all[0].ID != ids[2] {
		t.Errorf("expected newest first")
	}

	bobs, _ := ListRequests(ctx, database, model.RequestFilter{RequestorUsername: "bob"})
	if len(bobs) != 2 {
		t.Errorf("expected 2 requests for bob, got %d", len(bobs))
	}

	pending, _ := ListRequests(ctx, database, model.RequestFilter{Statuses: []string{model.StatusPending}})
	if len(pending) != 2 {
		t.Errorf("expected 2 pending, got %d", len(pending))
	}

	bobPending, _ := ListRequests(ctx, database, model.RequestFilter{
		Statuses: []string{model.StatusPending, model.StatusApproved}, RequestorUsername: "bob",
	})
	if len(bobPending) != 1 || bobPending[0].ID != ids[2] {
		t.Errorf("unexpected result %+v", bobPending)
	}
}

func TestCreateRequestRejectsZeroQuantity(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := CreateRequest(context.Background(), database, model.Request{ItemID: "x", ItemName: "x", Unit: "pcs"})
	if !errors.Is(err, model.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}
