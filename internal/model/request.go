package model

import "time"

// Request is an employee-initiated ask to borrow or consume stock.
type Request struct {
	ID                string    `json:"id"`
	ItemID            string    `json:"item_id"`
	ItemName          string    `json:"item_name"`
	Category          string    `json:"category"`
	Quantity          int       `json:"quantity"`
	Unit              string    `json:"unit"`
	RequestorName     string    `json:"requestor_name"`
	RequestorUsername string    `json:"requestor_username"`
	Status            string    `json:"status"`
	DecidedBy         string    `json:"decided_by,omitempty"`
	CreatedAt         time.Time `json:"timestamp"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Request statuses.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusDeclined = "DECLINED"
	StatusReturned = "RETURNED"
	StatusDamaged  = "DAMAGED"
)

var transitions = map[string][]string{
	StatusPending:  {StatusApproved, StatusDeclined},
	StatusApproved: {StatusReturned, StatusDamaged},
}

// CanTransition reports whether a request may move from one status to
// another. DECLINED, RETURNED and DAMAGED are terminal.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition leaves status.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

// ValidStatus reports whether status is a known request status.
func ValidStatus(status string) bool {
	_, ok := statusPriority[status]
	return ok
}

var statusPriority = map[string]int{
	StatusPending:  1,
	StatusApproved: 2,
	StatusReturned: 3,
	StatusDamaged:  4,
	StatusDeclined: 5,
}

// StatusPriority orders statuses for the "status" listing. Unknown
// statuses sort last.
func StatusPriority(status string) int {
	if p, ok := statusPriority[status]; ok {
		return p
	}
	return 99
}

// RequestFilter narrows a request listing. Empty fields match everything.
type RequestFilter struct {
	Statuses          []string
	RequestorUsername string
}
