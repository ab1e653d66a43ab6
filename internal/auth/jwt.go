// Package auth provides password hashing and JWT issuance/validation.
//
// AUTHENTICATION FLOW:
//  1. POST /register stores the bcrypt hash of the user's password
//  2. POST /login verifies the password and issues a signed JWT
//  3. On protected routes, middleware reads "Authorization: Bearer <jwt>",
//     validates it, and puts the subject (the login identifier) in the
//     request context
//
// WHY JWT?
// The token is stateless — nothing is stored server-side. Everything a
// protected route needs (who, until when) is inside the signed payload,
// and the HMAC signature guarantees it wasn't tampered with. The flip
// side is that there is NO revocation: once issued, a token stays valid
// for its full lifetime even if the password changes. If stronger session
// control is ever required, that means a deny-list or a short TTL plus
// refresh tokens — deliberately not built here.
//
// JWT STRUCTURE (three base64url parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: claims → {"sub":"a@x.com","exp":1234567890,...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/sentiment-api/internal/apperror"
)

// DefaultTokenTTL is the access-token lifetime used when the deployment
// doesn't configure one.
const DefaultTokenTTL = 30 * time.Minute

const issuer = "sentiment-api"

// TokenService issues and validates HMAC-signed bearer tokens.
//
// The secret is process-wide configuration: loaded once at startup,
// never rotated at runtime. Rotation would require accepting two keys
// during a grace window, which this design doesn't attempt.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given signing secret
// and default token lifetime. Pass ttl = 0 to use DefaultTokenTTL.
//
// The secret must come from configuration (JWT_SECRET), never a literal.
// Generate one with: openssl rand -hex 32
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims is the JWT payload. jwt.RegisteredClaims covers everything we
// need: Subject carries the login identifier, ExpiresAt the absolute
// expiry instant.
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates and signs a token for the given subject (the user's
// login identifier) with the service's configured TTL.
func (s *TokenService) Issue(subject string) (string, error) {
	return s.IssueWithTTL(subject, s.ttl)
}

// IssueWithTTL creates a token with a custom lifetime. Expiry is absolute:
// issuance time + ttl, evaluated against IST like every other timestamp
// in the system (JWT exp is epoch seconds, so the zone only affects
// human-readable logging, not validation).
func (s *TokenService) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("auth: token subject must not be empty")
	}

	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string, returning its subject.
//
// Checks performed (mostly by the jwt library):
//   - signature integrity against our secret
//   - current time strictly before ExpiresAt
//   - issuer matches ours (a token minted by another app is rejected)
//   - algorithm is HS256
//
// ALGORITHM CONFUSION:
// Without pinning the algorithm an attacker could present a token signed
// with "none". jwt.WithValidMethods closes that hole; the key callback
// double-checks for defence in depth.
//
// Every failure — expired, malformed, unsigned, foreign issuer, missing
// subject — surfaces as apperror.ErrInvalidToken. The caller treats it
// as "unauthenticated" and nothing more specific.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperror.InvalidToken("token expired")
		}
		return "", apperror.InvalidToken("invalid token")
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", apperror.InvalidToken("invalid token claims")
	}

	if c.Subject == "" {
		return "", apperror.InvalidToken("token has no subject")
	}

	return c.Subject, nil
}
