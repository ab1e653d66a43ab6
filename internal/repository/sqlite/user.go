package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/sentiment-api/internal/apperror"
	"github.com/sakif/sentiment-api/internal/clock"
	"github.com/sakif/sentiment-api/internal/model"
	"github.com/sakif/sentiment-api/internal/repository"
)

// UserDB implements repository.UserRepository. It shares the parent
// pool — sub-repositories are views over the same connection, not
// separate databases.
type UserDB struct {
	conn *sql.DB
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// Create inserts a new user, generating the ID and registration time.
//
// UNIQUENESS:
// users.email carries a UNIQUE constraint, so two requests racing to
// register the same identifier are arbitrated inside SQLite — exactly
// one INSERT wins and the other returns a constraint violation that we
// translate to apperror.ErrConflict. No application-level locking.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.RegisteredAt = clock.Now()
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, registered_at, last_login)
		 VALUES (?, ?, ?, ?, ?, NULL)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.RegisteredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return apperror.Unavailable(fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err))
	}

	return nil
}

// GetByEmail retrieves a user by login identifier.
// Returns apperror.ErrNotFound if no user exists with that email.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, registered_at, last_login
		 FROM users WHERE email = ?`,
		email,
	)

	usr, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, apperror.Unavailable(fmt.Errorf("sqlite: getting user %s: %w", email, err))
	}

	return usr, nil
}

// List returns every user, oldest registration first.
func (u *UserDB) List(ctx context.Context) ([]model.User, error) {
	rows, err := u.conn.QueryContext(ctx,
		`SELECT id, email, password_hash, role, registered_at, last_login
		 FROM users ORDER BY registered_at ASC`,
	)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("sqlite: listing users: %w", err))
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, apperror.Unavailable(fmt.Errorf("sqlite: scanning user row: %w", err))
		}
		users = append(users, *usr)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("sqlite: iterating users: %w", err))
	}

	return users, nil
}

// RecordLogin updates users.last_login and appends a login event with
// the same instant, in one transaction.
//
// ATOMICITY:
// The audit history and the denormalized last_login column must never
// diverge — either both writes persist or neither does. The rollback is
// deferred unconditionally; after a successful Commit it is a no-op.
//
// Two logins for the same user may interleave: each appends its own
// event and last_login ends up last-write-wins. That race is accepted
// because login_events remains the source of truth.
func (u *UserDB) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	tx, err := u.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Unavailable(fmt.Errorf("sqlite: beginning login transaction: %w", err))
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`, at, userID,
	)
	if err != nil {
		return apperror.Unavailable(fmt.Errorf("sqlite: updating last_login for %s: %w", userID, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("user", userID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO login_events (id, user_id, login_time) VALUES (?, ?, ?)`,
		xid.New().String(), userID, at,
	)
	if err != nil {
		return apperror.Unavailable(fmt.Errorf("sqlite: inserting login event for %s: %w", userID, err))
	}

	if err := tx.Commit(); err != nil {
		return apperror.Unavailable(fmt.Errorf("sqlite: committing login for %s: %w", userID, err))
	}

	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanUser reads one users row. last_login is nullable, so it goes
// through sql.NullTime before landing in the *time.Time field.
func scanUser(s scanner) (*model.User, error) {
	var (
		u         model.User
		role      string
		lastLogin sql.NullTime
	)

	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.RegisteredAt, &lastLogin)
	if err != nil {
		return nil, err
	}

	u.Role = model.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time.In(clock.IST())
		u.LastLogin = &t
	}
	u.RegisteredAt = u.RegisteredAt.In(clock.IST())

	return &u, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. modernc.org/sqlite doesn't export a typed error for this, so
// the message is the contract.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
