package reconcile

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/doublejdg/stockroom/internal/model"
)

func TestAdjustScenarioBolt(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, repo, model.Item{Name: "Bolt", Quantity: 10, Unit: "pcs"})

	res, err := e.ResolveScan(ctx, "bob", "Bolt")
	if err != nil {
		t.Fatalf("ResolveScan: %v", err)
	}
	if res.IsNew {
		t.Fatal("expected existing item")
	}

	out, err := e.Adjust(ctx, "bob", *res, Adjustment{Direction: DirectionRemove, Quantity: 3})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if out.Item.Quantity != 7 {
		t.Errorf("expected 7, got %d", out.Item.Quantity)
	}
	if out.Report.Type != model.ReportSold || out.Report.Quantity != 3 {
		t.Errorf("unexpected report %+v", out.Report)
	}

	_, err = e.Adjust(ctx, "bob", *res, Adjustment{Direction: DirectionRemove, Quantity: 20})
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	item, _ := repo.GetItem(ctx, res.Item.ID)
	if item.Quantity != 7 {
		t.Errorf("quantity should remain 7, got %d", item.Quantity)
	}
	if n := reportCount(t, repo); n != 1 {
		t.Errorf("expected 1 report, got %d", n)
	}
}

func TestAdjustScenarioNewWidget(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	res, err := e.ResolveScan(ctx, "bob", `{"name":"Widget","unit":"box","prices":{"box":50}}`)
	if err != nil {
		t.Fatalf("ResolveScan: %v", err)
	}
	if !res.IsNew {
		t.Fatal("expected new item")
	}

	out, err := e.Adjust(ctx, "bob", *res, Adjustment{Direction: DirectionAdd, Quantity: 5})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if out.Item.Name != "Widget" || out.Item.Quantity != 5 || out.Item.Unit != "box" {
		t.Errorf("unexpected item %+v", out.Item)
	}
	if out.Item.Category != model.CategoryConsumable {
		t.Errorf("expected CONSUMABLE, got %q", out.Item.Category)
	}
	if out.Report.Type != model.ReportNewItem || out.Report.Quantity != 5 {
		t.Errorf("unexpected report %+v", out.Report)
	}
	if out.Report.UnitPrice == nil || !out.Report.UnitPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected unit price 50, got %v", out.Report.UnitPrice)
	}

	items, _ := repo.ListItems(ctx)
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestAdjustNewItemRemove(t *testing.T) {
	e, repo := newTestEngine(t)

	res := Resolve(nil, DecodePayload("Ghost"))
	_, err := e.Adjust(context.Background(), "bob", res, Adjustment{Direction: DirectionRemove, Quantity: 1})
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if n := reportCount(t, repo); n != 0 {
		t.Errorf("expected no reports, got %d", n)
	}
}

func TestAdjustValidation(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, repo, model.Item{Name: "Bolt", Quantity: 10})
	res := Resolution{Item: item, Name: item.Name}

	_, err := e.Adjust(ctx, "bob", res, Adjustment{Direction: DirectionAdd, Quantity: 0})
	if !errors.Is(err, model.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	_, err = e.Adjust(ctx, "bob", res, Adjustment{Direction: "SIDEWAYS", Quantity: 1})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	_, err = e.Adjust(ctx, "bob", res, Adjustment{Direction: DirectionRemove, Quantity: 1, Type: model.ReportRestock})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	_, err = e.Adjust(ctx, "bob", Resolution{Item: &model.Item{ID: "missing"}}, Adjustment{Direction: DirectionAdd, Quantity: 1})
	if !errors.Is(err, model.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}

	if n := reportCount(t, repo); n != 0 {
		t.Errorf("expected no reports, got %d", n)
	}
}

func TestAdjustRemovalTypes(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, repo, model.Item{Name: "Bolt", Quantity: 10})
	res := Resolution{Item: item, Name: item.Name}

	for _, typ := range []string{model.ReportDeduct, model.ReportSoldManual} {
		out, err := e.Adjust(ctx, "bob", res, Adjustment{Direction: DirectionRemove, Quantity: 1, Type: typ})
		if err != nil {
			t.Fatalf("Adjust %s: %v", typ, err)
		}
		if out.Report.Type != typ {
			t.Errorf("expected %s, got %s", typ, out.Report.Type)
		}
	}

	out, err := e.Adjust(ctx, "bob", res, Adjustment{Direction: DirectionAdd, Quantity: 4})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if out.Report.Type != model.ReportRestock || out.Item.Quantity != 12 {
		t.Errorf("unexpected result %+v %+v", out.Item, out.Report)
	}
}

func TestAdjustSequenceConservesQuantity(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()
	item := seedItem(t, repo, model.Item{Name: "Bolt", Quantity: 20})
	res := Resolution{Item: item, Name: item.Name}

	rng := rand.New(rand.NewSource(7))
	expected := 20
	reports := 0
	for range 200 {
		qty := rng.Intn(6) + 1
		dir := DirectionAdd
		if rng.Intn(2) == 0 {
			dir = DirectionRemove
		}

		out, err := e.Adjust(ctx, "bob", res, Adjustment{Direction: dir, Quantity: qty})
		if dir == DirectionRemove && qty > expected {
			if !errors.Is(err, model.ErrInsufficientStock) {
				t.Fatalf("expected ErrInsufficientStock, got %v", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Adjust: %v", err)
		}
		reports++

		if dir == DirectionAdd {
			expected += qty
		} else {
			expected -= qty
		}
		if out.Item.Quantity != expected || out.Item.Quantity < 0 {
			t.Fatalf("expected %d, got %d", expected, out.Item.Quantity)
		}
		if out.Report.Quantity != qty {
			t.Fatalf("report quantity %d, want %d", out.Report.Quantity, qty)
		}
		wantType := model.ReportRestock
		if dir == DirectionRemove {
			wantType = model.ReportSold
		}
		if out.Report.Type != wantType {
			t.Fatalf("report type %q, want %q", out.Report.Type, wantType)
		}
	}

	if n := reportCount(t, repo); n != reports {
		t.Errorf("expected %d reports, got %d", reports, n)
	}
}

func TestAdjustReportFailure(t *testing.T) {
	_, repo := newTestEngine(t)
	e := New(failingReports{repo}, nil, nil)
	ctx := context.Background()
	item := seedItem(t, repo, model.Item{Name: "Bolt", Quantity: 10})

	out, err := e.Adjust(ctx, "bob", Resolution{Item: item, Name: item.Name}, Adjustment{Direction: DirectionRemove, Quantity: 2})

	var auditErr *model.AuditError
	if !errors.As(err, &auditErr) {
		t.Fatalf("expected AuditError, got %v", err)
	}
	if !errors.Is(err, model.ErrBackend) {
		t.Errorf("expected backend error inside, got %v", err)
	}
	if out == nil || out.Item.Quantity != 8 {
		t.Fatalf("expected the applied mutation to be returned, got %+v", out)
	}

	got, _ := repo.GetItem(ctx, item.ID)
	if got.Quantity != 8 {
		t.Errorf("mutation is not rolled back, expected 8, got %d", got.Quantity)
	}
}
