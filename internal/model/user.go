// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is a user's authorization level. Stored as TEXT in the users table.
type Role string

const (
	RoleUser  Role = "USER"  // default for every registration
	RoleAdmin Role = "ADMIN" // required for the aggregation endpoints
)

// User represents a registered account.
//
// Email is the login identifier: unique across all users and compared
// case-sensitively, exactly as stored. Whether it must actually be
// email-shaped is a deployment decision (see service.AuthConfig) — the
// model itself does not care.
//
// PasswordHash holds the bcrypt output, salt and cost included. The
// `json:"-"` tag keeps it out of every response; the hash never leaves
// the process. It is empty for accounts created via GitHub sign-in,
// which makes password login for them fail closed.
//
// LastLogin is a pointer because it is genuinely absent until the first
// login — an "empty" time.Time would serialize as year 1 and lie to the
// client. It is denormalized from login_events and updated on every
// successful login; the events table remains the source of truth.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	RegisteredAt time.Time  `json:"registeredAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

// IsAdmin reports whether the user may access administrative views.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
