package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrAccountNotFound    = errors.New("account not found")
	ErrItemNotFound       = errors.New("item not found")
	ErrInsufficientStock  = errors.New("not enough stock")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrRequestNotFound    = errors.New("request not found")
	ErrInvalidTransition  = errors.New("request status does not allow this action")
	ErrScanIgnored        = errors.New("scan ignored during cooldown")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrBackend marks any fault reported by the storage backend.
	ErrBackend = errors.New("backend failure")
)

// AuditError is returned when a stock mutation was applied but the
// matching report could not be appended.
type AuditError struct {
	Item *Item
	Err  error
}

func (e *AuditError) Error() string {
	name := ""
	if e.Item != nil {
		name = e.Item.Name
	}
	return fmt.Sprintf("stock for %q updated but report not recorded: %v", name, e.Err)
}

func (e *AuditError) Unwrap() error { return e.Err }
