package models

import (
	"time"
)

// Role is the enumerated capability level of a user account
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleCommercial Role = "commercial"
	RoleViewer     Role = "viewer"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCommercial, RoleViewer:
		return true
	}
	return false
}

// In reports whether r is one of the allowed roles
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// User represents an account that can log into the backend
type User struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile
	Name string `gorm:"not null;size:255" json:"name"`
	Role Role   `gorm:"type:varchar(20);not null;index" json:"role"`

	// Account status
	Active              bool       `gorm:"not null;index" json:"active"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"failed_login_attempts"`
	LastLoginAt         *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
