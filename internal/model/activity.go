package model

import "time"

// Activity is one row of the merged stock movement feed.
type Activity struct {
	Key       string    `json:"key"`
	SourceID  string    `json:"source_id"`
	ItemName  string    `json:"item_name"`
	Quantity  int       `json:"quantity"`
	Unit      string    `json:"unit"`
	Direction string    `json:"direction"`
	Label     string    `json:"label"`
	User      string    `json:"user,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Movement directions.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// Summary is the dashboard overview of current stock.
type Summary struct {
	TotalStock      int    `json:"total_stock"`
	ItemCount       int    `json:"item_count"`
	PendingRequests int    `json:"pending_requests"`
	LowStock        []Item `json:"low_stock"`
}

// IsLowStock reports whether a consumable is running out. Boxed stock is
// low at 5 or fewer, anything else at 10 or fewer. Equipment is never low.
func IsLowStock(item Item) bool {
	if item.Category == CategoryEquipment {
		return false
	}
	if item.Unit == "box" {
		return item.Quantity <= 5
	}
	return item.Quantity <= 10
}
