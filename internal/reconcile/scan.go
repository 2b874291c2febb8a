package reconcile

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	"github.com/doublejdg/stockroom/internal/model"
)

// ScanPayload is the structured content of a product QR code. Either Name
// or ProductName identifies the product.
type ScanPayload struct {
	Name        string             `json:"name,omitempty" jsonschema:"description=Product name"`
	ProductName string             `json:"productName,omitempty" jsonschema:"description=Alternative key for the product name"`
	Unit        string             `json:"unit,omitempty" jsonschema:"description=Unit of measure,default=pcs"`
	Prices      map[string]float64 `json:"prices,omitempty" jsonschema:"description=Price per unit of measure"`
}

// Scan is a decoded payload ready for resolution.
type Scan struct {
	Name   string
	Unit   string
	Prices model.Prices
}

// DecodePayload interprets raw scanner output. A JSON object naming a
// product is read field by field, so a malformed unit or price falls back
// to its default instead of rejecting the payload. Anything else is taken
// as a literal product name.
func DecodePayload(raw string) Scan {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err == nil {
		name := stringField(fields, "name")
		if name == "" {
			name = stringField(fields, "productName")
		}
		if name != "" {
			unit := stringField(fields, "unit")
			if unit == "" {
				unit = model.DefaultUnit
			}
			prices := priceField(fields, "prices")
			if len(prices) == 0 {
				prices = model.ZeroPrices(unit)
			}
			return Scan{Name: name, Unit: unit, Prices: prices}
		}
	}

	return Scan{
		Name:   strings.TrimSpace(raw),
		Unit:   model.DefaultUnit,
		Prices: model.ZeroPrices(model.DefaultUnit),
	}
}

// stringField returns the trimmed string at key, or "" when it is missing
// or not a string.
func stringField(fields map[string]json.RawMessage, key string) string {
	var v string
	if err := json.Unmarshal(fields[key], &v); err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// priceField returns the unit prices at key. Numbers and numeric strings
// are accepted; other entries are skipped.
func priceField(fields map[string]json.RawMessage, key string) model.Prices {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(fields[key], &entries); err != nil {
		return nil
	}
	prices := make(model.Prices, len(entries))
	for unit, v := range entries {
		var price decimal.Decimal
		if err := price.UnmarshalJSON(v); err != nil {
			continue
		}
		prices[strings.TrimSpace(unit)] = price
	}
	return prices
}

// PayloadSchema returns the JSON Schema of the structured scan payload.
func PayloadSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	return reflector.Reflect(&ScanPayload{})
}

// Resolution is the outcome of matching a scan against inventory: either
// an existing item or the descriptor of a new one.
type Resolution struct {
	IsNew  bool         `json:"is_new"`
	Item   *model.Item  `json:"item,omitempty"`
	Name   string       `json:"name"`
	Unit   string       `json:"unit"`
	Prices model.Prices `json:"prices"`
}

// Resolve matches a scan to the first item with the same name, ignoring
// case. It has no side effects.
func Resolve(items []model.Item, s Scan) Resolution {
	for i := range items {
		if model.SameName(items[i].Name, s.Name) {
			item := items[i]
			return Resolution{Item: &item, Name: item.Name, Unit: item.Unit, Prices: item.Prices}
		}
	}
	return Resolution{IsNew: true, Name: s.Name, Unit: s.Unit, Prices: s.Prices}
}

// Debouncer suppresses repeated scans from the same actor.
type Debouncer struct {
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewDebouncer creates a debouncer. A nil clock uses time.Now.
func NewDebouncer(cooldown time.Duration, now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	return &Debouncer{cooldown: cooldown, now: now, last: make(map[string]time.Time)}
}

// Allow reports whether a scan from actor should be processed, and if so
// starts a new cooldown for that actor.
func (d *Debouncer) Allow(actor string) bool {
	if d.cooldown <= 0 {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.last[actor]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.last[actor] = now

	// Forget actors whose cooldown has long passed.
	for a, t := range d.last {
		if now.Sub(t) > 10*d.cooldown {
			delete(d.last, a)
		}
	}
	return true
}

// Forget clears the cooldown of actor, as when the scan it was started for
// did not complete.
func (d *Debouncer) Forget(actor string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.last, actor)
}

// ResolveScan decodes raw scanner output and resolves it against the
// current inventory. Scans arriving during the actor's cooldown return
// model.ErrScanIgnored. Only a successful resolution starts a cooldown.
func (e *Engine) ResolveScan(ctx context.Context, actor, raw string) (*Resolution, error) {
	s := DecodePayload(raw)
	if s.Name == "" {
		return nil, model.ErrItemNotFound
	}
	if !e.scans.Allow(actor) {
		return nil, model.ErrScanIgnored
	}

	items, err := e.Repo.ListItems(ctx)
	if err != nil {
		e.scans.Forget(actor)
		return nil, backendErr("listing items", err)
	}

	res := Resolve(items, s)
	return &res, nil
}

// ResolveItem selects an existing item by ID, as when an operator picks it
// from the inventory list instead of scanning.
func (e *Engine) ResolveItem(ctx context.Context, id string) (*Resolution, error) {
	item, err := e.Repo.GetItem(ctx, id)
	if err != nil {
		return nil, backendErr("getting item", err)
	}
	if item == nil {
		return nil, model.ErrItemNotFound
	}
	return &Resolution{Item: item, Name: item.Name, Unit: item.Unit, Prices: item.Prices}, nil
}
