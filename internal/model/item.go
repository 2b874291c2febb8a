package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a stocked product. Quantity is the single source of truth for
// on-hand stock.
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Unit      string    `json:"unit"`
	Category  string    `json:"category"`
	Prices    Prices    `json:"prices"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item categories.
const (
	CategoryConsumable = "CONSUMABLE"
	CategoryEquipment  = "EQUIPMENT"
)

// DefaultUnit is used when a scanned payload names no unit.
const DefaultUnit = "pcs"

// DateLayout is the calendar-day format stored on items and reports.
const DateLayout = "2006-01-02"

// NormalizeCategory maps an empty or unknown category to CONSUMABLE.
func NormalizeCategory(category string) string {
	switch strings.ToUpper(strings.TrimSpace(category)) {
	case CategoryEquipment:
		return CategoryEquipment
	default:
		return CategoryConsumable
	}
}

// Prices maps a unit of measure to its price.
type Prices map[string]decimal.Decimal

// PriceFor returns the price for unit, or zero when none is set.
func (p Prices) PriceFor(unit string) decimal.Decimal {
	if price, ok := p[unit]; ok {
		return price
	}
	return decimal.Zero
}

// ZeroPrices returns a price map with every given unit priced at zero.
func ZeroPrices(units ...string) Prices {
	p := make(Prices, len(units))
	for _, u := range units {
		p[u] = decimal.Zero
	}
	return p
}

// SameName compares item names the way scans resolve them.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
