// Package auth — password hashing utilities.
//
// WHY BCRYPT?
// bcrypt is a password hashing function designed to be slow, and the
// slowness is tunable: the embedded cost factor can be raised as hardware
// gets faster, so brute-forcing stolen hashes stays expensive over time.
//
// bcrypt also handles the salting for us:
//   - a random salt is generated per call (two users with the same
//     password get different hashes)
//   - the salt and cost are embedded in the output string, so no separate
//     salt column is needed and verification is self-contained
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 iterations)
//	 version
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for new hashes.
//
// Cost 12 takes roughly 250ms on current server hardware — negligible for
// a login, brutal for an attacker iterating a password list. Tune it so
// hashing stays in the 200–300ms range as machines improve.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected: tests
// use cost 4 (the bcrypt minimum) and run in milliseconds instead of
// paying ~250ms per hash.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost creates a PasswordService with a custom cost.
// Intended for tests (cost 4); do not lower the cost in production.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is a self-contained string — store it directly; Verify knows
// how to decode the salt and cost back out of it.
//
// Returns an error for plaintexts over 72 bytes: bcrypt silently truncates
// beyond that, and silent truncation of a password is worse than an error.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// Returns nil on a match, a non-nil error otherwise.
//
// FAIL CLOSED:
// Every failure — mismatch, empty hash, malformed or truncated hash,
// unsupported version — comes back as the same error. A corrupted hash
// column must read as "wrong password", never as "valid", and collapsing
// the causes also avoids leaking which one occurred.
//
// bcrypt.CompareHashAndPassword is constant-time on the comparison
// itself, so response timing does not reveal how much of the password
// was correct.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		return fmt.Errorf("auth: password verification failed")
	}
	return nil
}
