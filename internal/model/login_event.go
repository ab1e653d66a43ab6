package model

import "time"

// LoginEvent is one audit record: user X logged in at time T.
//
// Events are append-only. Nothing in the application mutates or deletes
// them, which is what makes login_events the source of truth when the
// denormalized users.last_login field loses a concurrent-login race.
type LoginEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	LoginTime time.Time `json:"loginTime"`
}
