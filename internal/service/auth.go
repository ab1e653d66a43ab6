// Package service contains the business logic layer.
//
// THE THREE-LAYER SHAPE:
//
//	Handler (HTTP)      → parses requests, writes responses
//	Service (this pkg)  → validates, enforces rules, orchestrates
//	Repository (data)   → reads/writes the database
//
// Services accept primitives and context, return domain models and
// apperror values, and know nothing about HTTP. Handlers translate in
// both directions. Repositories are injected as interfaces so tests can
// substitute in-memory fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/sentiment-api/internal/apperror"
	"github.com/sakif/sentiment-api/internal/auth"
	"github.com/sakif/sentiment-api/internal/clock"
	"github.com/sakif/sentiment-api/internal/model"
	"github.com/sakif/sentiment-api/internal/repository"
)

// MinPasswordLength is the boundary policy for new registrations.
// Verification has no length check — existing hashes stay valid if the
// policy ever tightens.
const MinPasswordLength = 6

// AuthConfig carries the deployment's identity policy.
type AuthConfig struct {
	// EmailIdentifiers requires login identifiers to look like email
	// addresses (contain "@"). Deployments that use plain usernames turn
	// this off; the rest of the system treats the identifier as opaque
	// either way.
	EmailIdentifiers bool
}

// AuthService owns registration, login, and token validation.
//
// All dependencies are injected; nothing here is a package-level
// singleton. The composition root (internal/server) builds one instance
// at startup and tears it down with the process.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	cfg       AuthConfig
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		cfg:       cfg,
		logger:    logger,
	}
}

// AuthResult bundles the outcome of a successful login: the user record
// (with last_login already updated) and the issued bearer token.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new account.
//
// VALIDATION BEFORE WORK:
// Identifier and password shape are checked before any hashing or lookup
// happens — a malformed request must not cost a bcrypt invocation or a
// database round trip. Violations return ErrValidation.
//
// A duplicate identifier returns ErrConflict. The uniqueness decision is
// made by the storage layer's constraint, so two racing registrations
// resolve correctly without any locking here.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)

	if email == "" {
		return nil, apperror.ValidationFailed("email", "login identifier is required")
	}
	if s.cfg.EmailIdentifiers && !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "login identifier must be an email address")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		// Over-length password is the only client-caused failure here
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("registration failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: registering %s: %w", email, err)
	}

	s.logger.Info("user registered", slog.String("email", email))
	return user, nil
}

// Login verifies credentials, records the login, and issues a token.
//
// ENUMERATION RESISTANCE:
// An unknown identifier and a wrong password both return the identical
// ErrInvalidCredentials — same category, same message. Only the internal
// log distinguishes them. (The bcrypt comparison is skipped for unknown
// identifiers; the adaptive-cost difference in response time is the
// unavoidable residue noted in the hasher's contract.)
//
// The audit entry and the last_login update commit together; the token
// is issued only after they persist, so a successful login response
// always corresponds to exactly one recorded LoginEvent.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("login failed: unknown identifier", slog.String("email", email))
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Warn("login failed: password mismatch", slog.String("email", email))
		return nil, apperror.InvalidCredentials()
	}

	now := clock.Now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		s.logger.Error("recording login failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: recording login for %s: %w", email, err)
	}
	user.LastLogin = &now

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", email, err)
	}

	s.logger.Info("user logged in", slog.String("email", email))
	return &AuthResult{User: user, Token: token}, nil
}

// LoginWithGitHub signs a user in via their GitHub identity, creating
// the account on first sight.
//
// GitHub-created accounts store an empty password hash. bcrypt
// verification fails closed on an empty hash, so password login for such
// an account yields the usual invalid-credentials error — there is no
// password to guess.
func (s *AuthService) LoginWithGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	if ghUser.Email == "" {
		// The email is our login identifier; an account hidden behind
		// GitHub's privacy setting can't be mapped onto one.
		return nil, apperror.ValidationFailed("email",
			"GitHub account has no public email; set one or register with a password")
	}

	user, err := s.users.GetByEmail(ctx, ghUser.Email)
	switch {
	case err == nil:
		// existing account, fall through to login
	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{
			Email: ghUser.Email,
			Role:  model.RoleUser,
			// PasswordHash intentionally empty: OAuth-only account
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				// Lost a race with a concurrent first sign-in — the
				// account exists now, use it.
				if user, err = s.users.GetByEmail(ctx, ghUser.Email); err != nil {
					return nil, fmt.Errorf("service/auth: refetching %s: %w", ghUser.Email, err)
				}
			} else {
				return nil, fmt.Errorf("service/auth: creating GitHub user %s: %w", ghUser.Email, err)
			}
		}
		s.logger.Info("user registered via GitHub",
			slog.String("email", ghUser.Email),
			slog.Int64("githubID", ghUser.ID),
		)
	default:
		return nil, fmt.Errorf("service/auth: looking up %s: %w", ghUser.Email, err)
	}

	now := clock.Now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("service/auth: recording GitHub login for %s: %w", user.Email, err)
	}
	user.LastLogin = &now

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.Email, err)
	}

	s.logger.Info("user logged in via GitHub", slog.String("email", user.Email))
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByEmail resolves a login identifier to the full user record.
// Protected routes call this after the middleware validates the token.
func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, apperror.ValidationFailed("email", "login identifier is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// ValidateToken validates a bearer token string and returns the subject
// (login identifier) it carries. Thin delegation so callers only import
// the service package.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	return s.tokens.Validate(tokenStr)
}
