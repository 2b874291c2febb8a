package model

import (
	"fmt"
	"time"
)

// Account is a staff member who can sign in.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Position     string    `json:"position,omitempty"`
	ImageURI     string    `json:"image_uri,omitempty"`
	PushToken    string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Roles.
const (
	RoleOwner    = "owner"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleOwner || role == RoleManager || role == RoleEmployee
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleOwner:    3,
		RoleManager:  2,
		RoleEmployee: 1,
	}
	return levels[role] >= levels[minimum] && levels[minimum] > 0
}

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
