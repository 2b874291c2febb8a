package reconcile

import (
	"context"
	"sort"

	"github.com/doublejdg/stockroom/internal/model"
)

// fallbackUnit labels report rows whose item no longer exists.
const fallbackUnit = "units"

var reportDirections = map[string]string{
	model.ReportNewItem:       model.DirectionIn,
	model.ReportRestock:       model.DirectionIn,
	model.ReportReturned:      model.DirectionIn,
	model.ReportSold:          model.DirectionOut,
	model.ReportDeduct:        model.DirectionOut,
	model.ReportSoldManual:    model.DirectionOut,
	model.ReportDamagedReturn: model.DirectionOut,
}

// ReportDirection classifies a report type as IN or OUT. Unknown types
// count as OUT.
func ReportDirection(reportType string) string {
	if d, ok := reportDirections[reportType]; ok {
		return d
	}
	return model.DirectionOut
}

// BuildActivity merges reports with approved and returned requests into a
// single feed, newest first. Other request statuses are not stock
// movements and are left out.
func BuildActivity(reports []model.Report, requests []model.Request, items []model.Item) []model.Activity {
	units := make(map[string]string, len(items))
	for _, item := range items {
		units[item.Name] = item.Unit
	}

	rows := make([]model.Activity, 0, len(reports)+len(requests))

	for _, r := range reports {
		unit, ok := units[r.Name]
		if !ok {
			unit = fallbackUnit
		}
		rows = append(rows, model.Activity{
			Key:       "report-" + r.ID,
			SourceID:  r.ID,
			ItemName:  r.Name,
			Quantity:  r.Quantity,
			Unit:      unit,
			Direction: ReportDirection(r.Type),
			Label:     r.Type,
			User:      r.Actor,
			Timestamp: r.CreatedAt,
		})
	}

	for _, r := range requests {
		var direction, label string
		switch r.Status {
		case model.StatusApproved:
			direction, label = model.DirectionOut, "Borrowed"
		case model.StatusReturned:
			direction, label = model.DirectionIn, "Returned"
		default:
			continue
		}
		rows = append(rows, model.Activity{
			Key:       "request-" + r.ID,
			SourceID:  r.ID,
			ItemName:  r.ItemName,
			Quantity:  r.Quantity,
			Unit:      r.Unit,
			Direction: direction,
			Label:     label,
			User:      r.RequestorName,
			Timestamp: r.CreatedAt,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.After(rows[j].Timestamp)
	})
	return rows
}

// Activity returns the merged movement feed.
func (e *Engine) Activity(ctx context.Context) ([]model.Activity, error) {
	reports, err := e.Repo.ListReports(ctx)
	if err != nil {
		return nil, backendErr("listing reports", err)
	}
	requests, err := e.Repo.ListRequests(ctx, model.RequestFilter{
		Statuses: []string{model.StatusApproved, model.StatusReturned},
	})
	if err != nil {
		return nil, backendErr("listing requests", err)
	}
	items, err := e.Repo.ListItems(ctx)
	if err != nil {
		return nil, backendErr("listing items", err)
	}
	return BuildActivity(reports, requests, items), nil
}

// ListReports returns the report log, newest first.
func (e *Engine) ListReports(ctx context.Context) ([]model.Report, error) {
	reports, err := e.Repo.ListReports(ctx)
	if err != nil {
		return nil, backendErr("listing reports", err)
	}
	return reports, nil
}

// ListItems returns the inventory, optionally limited to one category.
func (e *Engine) ListItems(ctx context.Context, category string) ([]model.Item, error) {
	items, err := e.Repo.ListItems(ctx)
	if err != nil {
		return nil, backendErr("listing items", err)
	}
	if category == "" {
		return items, nil
	}
	category = model.NormalizeCategory(category)
	filtered := items[:0]
	for _, item := range items {
		if item.Category == category {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// Summary totals current stock and counts pending requests.
func (e *Engine) Summary(ctx context.Context) (*model.Summary, error) {
	items, err := e.Repo.ListItems(ctx)
	if err != nil {
		return nil, backendErr("listing items", err)
	}
	pending, err := e.Repo.ListRequests(ctx, model.RequestFilter{Statuses: []string{model.StatusPending}})
	if err != nil {
		return nil, backendErr("listing requests", err)
	}

	s := &model.Summary{ItemCount: len(items), PendingRequests: len(pending), LowStock: []model.Item{}}
	for _, item := range items {
		s.TotalStock += item.Quantity
		if model.IsLowStock(item) {
			s.LowStock = append(s.LowStock, item)
		}
	}
	return s, nil
}
