// Package repository declares the storage interfaces the service layer
// programs against. The sqlite subpackage provides the implementation;
// tests substitute hand-written fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/sentiment-api/internal/model"
)

// UserRepository persists identity records.
type UserRepository interface {
	// Create inserts a new user. Racing registrations on the same email
	// are resolved by the storage-layer uniqueness constraint: the loser
	// gets apperror.ErrConflict, never a second row.
	Create(ctx context.Context, user *model.User) error

	// GetByEmail looks a user up by login identifier (case-sensitive,
	// as stored). Returns apperror.ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// List returns all users, oldest registration first.
	List(ctx context.Context) ([]model.User, error)

	// RecordLogin atomically sets users.last_login = at AND appends a
	// LoginEvent with the same instant. Either both persist or neither
	// does — the audit trail and the denormalized column never diverge.
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}

// LoginEventRepository reads the append-only login audit trail.
type LoginEventRepository interface {
	// HistoryFor returns a user's login events, newest first.
	HistoryFor(ctx context.Context, userID string) ([]model.LoginEvent, error)
}

// SentimentRepository persists classification records.
type SentimentRepository interface {
	// Create appends an immutable SentimentEntry.
	Create(ctx context.Context, entry *model.SentimentEntry) error

	// HistoryFor returns a user's entries, newest first.
	HistoryFor(ctx context.Context, userID string) ([]model.SentimentEntry, error)

	// AllGroupedByUser returns, for every user with at least one entry,
	// a mapping from the user's email to text → sentiment. When the same
	// text was analyzed more than once, the most recent label wins.
	AllGroupedByUser(ctx context.Context) (map[string]map[string]model.Sentiment, error)
}
