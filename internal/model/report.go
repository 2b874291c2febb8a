package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is an append-only audit entry for one inventory-affecting event.
// Name is denormalized, not a reference.
type Report struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      string           `json:"type"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Date      string           `json:"date"`
	CreatedAt time.Time        `json:"timestamp"`
	Note      string           `json:"note,omitempty"`
	Actor     string           `json:"actor,omitempty"`
}

// Report types.
const (
	ReportNewItem       = "NEW ITEM"
	ReportRestock       = "RESTOCK"
	ReportSold          = "SOLD"
	ReportDeduct        = "DEDUCT"
	ReportSoldManual    = "SOLD (MANUAL)"
	ReportReturned      = "RETURNED"
	ReportDamagedReturn = "DAMAGED_RETURN"
)

// IsRemovalType reports whether t is a report type that decreases stock
// through a direct adjustment.
func IsRemovalType(t string) bool {
	return t == ReportSold || t == ReportDeduct || t == ReportSoldManual
}

// AuditLog records account activity such as logins and registrations.
type AuditLog struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// Audit actions.
const (
	AuditLogin          = "LOGIN"
	AuditLogout         = "LOGOUT"
	AuditRegister       = "REGISTER"
	AuditPasswordChange = "PASSWORD_CHANGE"
	AuditRoleChange     = "ROLE_CHANGE"
)
