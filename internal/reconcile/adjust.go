package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doublejdg/stockroom/internal/feed"
	"github.com/doublejdg/stockroom/internal/model"
)

// Adjustment directions.
const (
	DirectionAdd    = "ADD"
	DirectionRemove = "REMOVE"
)

// Adjustment is a requested stock change. Type optionally selects the
// report type for removals (SOLD, DEDUCT or SOLD (MANUAL)); SOLD is used
// when empty. Category only applies when the adjustment creates an item.
type Adjustment struct {
	Direction string `json:"direction"`
	Quantity  int    `json:"quantity"`
	Type      string `json:"type,omitempty"`
	Category  string `json:"category,omitempty"`
	Note      string `json:"note,omitempty"`
}

// AdjustResult is the item after an adjustment and the report recorded
// for it.
type AdjustResult struct {
	Item   *model.Item   `json:"item"`
	Report *model.Report `json:"report,omitempty"`
}

// Adjust applies an adjustment to a resolved item. Stock is mutated first
// and the report appended second. If the report cannot be appended, the
// result is returned together with a *model.AuditError.
func (e *Engine) Adjust(ctx context.Context, actor string, res Resolution, adj Adjustment) (*AdjustResult, error) {
	if adj.Quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}

	reportType, err := reportTypeFor(adj)
	if err != nil {
		return nil, err
	}

	var item *model.Item
	created := false

	switch {
	case res.IsNew && adj.Direction == DirectionRemove:
		return nil, model.ErrInsufficientStock

	case res.IsNew:
		item, err = e.createItem(ctx, res, adj)
		if err != nil {
			return nil, err
		}
		created = true

	default:
		if res.Item == nil {
			return nil, model.ErrItemNotFound
		}
		delta := adj.Quantity
		if adj.Direction == DirectionRemove {
			current, err := e.Repo.GetItem(ctx, res.Item.ID)
			if err != nil {
				return nil, backendErr("getting item", err)
			}
			if current == nil {
				return nil, model.ErrItemNotFound
			}
			if adj.Quantity > current.Quantity {
				return nil, model.ErrInsufficientStock
			}
			delta = -adj.Quantity
		}
		item, err = e.Repo.AdjustItemQuantity(ctx, res.Item.ID, delta)
		if err != nil {
			return nil, backendErr("adjusting quantity", err)
		}
	}

	if created {
		reportType = model.ReportNewItem
		e.publish(feed.CollectionInventory, feed.OpCreate, item.ID, item)
	} else {
		if adj.Direction == DirectionAdd {
			reportType = model.ReportRestock
		}
		e.publish(feed.CollectionInventory, feed.OpUpdate, item.ID, item)
	}

	price := item.Prices.PriceFor(item.Unit)
	report, err := e.Repo.AppendReport(ctx, model.Report{
		Name:      item.Name,
		Type:      reportType,
		Quantity:  adj.Quantity,
		UnitPrice: &price,
		Note:      adj.Note,
		Actor:     actor,
		CreatedAt: e.now(),
	})
	if err != nil {
		slog.Error("report not recorded after stock change", "item", item.Name, "type", reportType, "error", err)
		return &AdjustResult{Item: item}, &model.AuditError{Item: item, Err: backendErr("appending report", err)}
	}
	e.publishReport(report)

	slog.Info("stock adjusted", "item", item.Name, "type", reportType, "quantity", adj.Quantity, "stock", item.Quantity, "actor", actor)

	return &AdjustResult{Item: item, Report: report}, nil
}

func (e *Engine) createItem(ctx context.Context, res Resolution, adj Adjustment) (*model.Item, error) {
	now := e.now()
	prices := res.Prices
	if prices == nil {
		prices = model.ZeroPrices(res.Unit)
	}
	item, err := e.Repo.CreateItem(ctx, model.Item{
		Name:      res.Name,
		Quantity:  adj.Quantity,
		Unit:      res.Unit,
		Category:  model.NormalizeCategory(adj.Category),
		Prices:    prices,
		Date:      now.Format(model.DateLayout),
		CreatedAt: now,
	})
	if err != nil {
		return nil, backendErr("creating item", err)
	}
	return item, nil
}

func reportTypeFor(adj Adjustment) (string, error) {
	switch adj.Direction {
	case DirectionAdd:
		return "", nil
	case DirectionRemove:
		if adj.Type == "" {
			return model.ReportSold, nil
		}
		if !model.IsRemovalType(adj.Type) {
			return "", fmt.Errorf("%w: unsupported removal type %q", model.ErrInvalidInput, adj.Type)
		}
		return adj.Type, nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", model.ErrInvalidInput, adj.Direction)
	}
}
