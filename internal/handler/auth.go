package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/sentiment-api/internal/auth"
	"github.com/sakif/sentiment-api/internal/model"
	"github.com/sakif/sentiment-api/internal/service"
)

// AuthService is the slice of the service layer the auth handler needs.
// Declaring it here (at the point of use) lets tests substitute a mock
// without touching the real service.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	LoginWithGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*service.AuthResult, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// GitHubAuthenticator is the OAuth provider surface the handler uses:
// build the authorization URL, then exchange the callback code for a
// profile.
type GitHubAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler manages registration, credential login, and the GitHub
// OAuth flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an account from a credential pair
//   - HandleLogin          → verify credentials, return a bearer token
//   - HandleMe             → return the authenticated user's profile
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it, return a token
type AuthHandler struct {
	auth   AuthService
	github GitHubAuthenticator
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. The github provider may be nil
// when OAuth is not configured; the server only mounts the OAuth routes
// when it is present.
func NewAuthHandler(authSvc AuthService, github GitHubAuthenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authSvc,
		github: github,
		logger: logger,
	}
}

// credentialsRequest is the request body for register and login.
//
// Both JSON and form encodings are accepted. The form field names follow
// the common OAuth2 password-grant convention (username/password) so
// off-the-shelf clients work unmodified; "email" is accepted as a JSON
// alias for the same identifier.
type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// identifier returns whichever identifier field the client filled in.
func (c *credentialsRequest) identifier() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Email
}

// decodeCredentials reads a credential pair from either a JSON body or a
// form-encoded one, keyed on Content-Type.
func decodeCredentials(r *http.Request) (*credentialsRequest, error) {
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return &credentialsRequest{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}, nil
}

// tokenResponse is the success body for login and the OAuth callback.
// The shape follows the OAuth2 bearer-token convention.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /register
// Body: {"username": "...", "password": "..."} or form-encoded
//
// Responds 201 with the created user (password hash excluded by the
// model's JSON tags), 400 on validation failure, 409 on a duplicate
// identifier.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		h.logger.Warn("invalid register request body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "malformed request body",
		})
		return
	}

	user, err := h.auth.Register(r.Context(), req.identifier(), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin verifies credentials and returns a bearer token.
//
// HTTP: POST /login
// Body: {"username": "...", "password": "..."} or form-encoded
//
// Success: 200 {"access_token": "...", "token_type": "bearer"}
// Failure: 401 with a fixed message — unknown identifier and wrong
// password are indistinguishable from the outside.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		h.logger.Warn("invalid login request body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "malformed request body",
		})
		return
	}

	result, err := h.auth.Login(r.Context(), req.identifier(), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
	})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets the subject in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	email, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "authentication required",
		})
		return
	}

	user, err := h.auth.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.logger.Error("HandleMe: lookup failed", slog.String("email", email))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF
// attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	// HttpOnly: JavaScript can't read it.
	// SameSite=Lax: not sent on cross-site POSTs.
	// 10-minute expiry: long enough to approve, short enough to limit risk.
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile
//  3. Find-or-create the account and record the login
//  4. Return the bearer token as JSON, same shape as /login
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid OAuth state",
		})
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid OAuth state",
		})
		return
	}

	// Clear the state cookie — it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// GitHub reports a denied authorization via the error parameter
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_credentials",
			Message: "authorization denied",
		})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "missing OAuth code",
		})
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "authentication failed",
		})
		return
	}

	result, err := h.auth.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
	})
}
