package models

import (
	"time"
)

// UserRole distinguishes administrators from regular instructors
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleRegular UserRole = "regular"
)

// User represents an authenticated account. Credential handling lives in the
// auth collaborator; this service only consumes the resolved identity.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	Role         UserRole  `json:"role"`
	ApiToken     string    `json:"-"` // Never serialize
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin returns true for administrator accounts
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// MaskedToken returns first 8 characters of the API token for logging
func (u *User) MaskedToken() string {
	if len(u.ApiToken) < 8 {
		return "***"
	}
	return u.ApiToken[:8] + "..."
}

// UserSummary is the profile subset echoed alongside evaluator listings
type UserSummary struct {
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}

// Summary returns the public profile for API responses
func (u *User) Summary() UserSummary {
	return UserSummary{Name: u.Name, Email: u.Email, Role: u.Role}
}
