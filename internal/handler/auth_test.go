package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/sentiment-api/internal/apperror"
	"github.com/sakif/sentiment-api/internal/auth"
	"github.com/sakif/sentiment-api/internal/handler"
	"github.com/sakif/sentiment-api/internal/model"
	"github.com/sakif/sentiment-api/internal/service"
)

// MockAuthService implements handler.AuthService with canned responses,
// capturing the arguments it was called with.
type MockAuthService struct {
	CapturedEmail    string
	CapturedPassword string

	RegisterUser *model.User
	RegisterErr  error
	LoginResult  *service.AuthResult
	LoginErr     error
	GitHubResult *service.AuthResult
	GitHubErr    error
	MeUser       *model.User
	MeErr        error
}

func (m *MockAuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	m.CapturedEmail, m.CapturedPassword = email, password
	return m.RegisterUser, m.RegisterErr
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	m.CapturedEmail, m.CapturedPassword = email, password
	if m.LoginErr != nil {
		return nil, m.LoginErr
	}
	return m.LoginResult, nil
}

func (m *MockAuthService) LoginWithGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*service.AuthResult, error) {
	if m.GitHubErr != nil {
		return nil, m.GitHubErr
	}
	return m.GitHubResult, nil
}

func (m *MockAuthService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.CapturedEmail = email
	if m.MeErr != nil {
		return nil, m.MeErr
	}
	return m.MeUser, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAuthHandler_HandleRegister(t *testing.T) {
	t.Run("valid JSON registration", func(t *testing.T) {
		mock := &MockAuthService{
			RegisterUser: &model.User{ID: "u1", Email: "alice@example.com", Role: model.RoleUser},
		}
		h := handler.NewAuthHandler(mock, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/register",
			bytes.NewBufferString(`{"username":"alice@example.com","password":"secret123"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "alice@example.com", mock.CapturedEmail)
		assert.Equal(t, "secret123", mock.CapturedPassword)

		var user model.User
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
		assert.Equal(t, "u1", user.ID)
		assert.NotContains(t, rr.Body.String(), "password")
	})

	t.Run("form-encoded registration", func(t *testing.T) {
		mock := &MockAuthService{
			RegisterUser: &model.User{ID: "u1", Email: "alice@example.com"},
		}
		h := handler.NewAuthHandler(mock, nil, testLogger())

		form := "username=alice%40example.com&password=secret123"
		req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "alice@example.com", mock.CapturedEmail)
	})

	t.Run("malformed JSON body", func(t *testing.T) {
		h := handler.NewAuthHandler(&MockAuthService{}, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(`{"username":`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("duplicate identifier maps to 409", func(t *testing.T) {
		mock := &MockAuthService{RegisterErr: apperror.Conflict("user", "alice@example.com")}
		h := handler.NewAuthHandler(mock, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/register",
			bytes.NewBufferString(`{"username":"alice@example.com","password":"secret123"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Contains(t, rr.Body.String(), "conflict")
	})

	t.Run("validation failure maps to 400", func(t *testing.T) {
		mock := &MockAuthService{RegisterErr: apperror.ValidationFailed("password", "password too short")}
		h := handler.NewAuthHandler(mock, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/register",
			bytes.NewBufferString(`{"username":"alice@example.com","password":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "validation_error")
	})
}

func TestAuthHandler_HandleLogin(t *testing.T) {
	t.Run("valid login returns bearer token", func(t *testing.T) {
		mock := &MockAuthService{
			LoginResult: &service.AuthResult{
				User:  &model.User{ID: "u1", Email: "alice@example.com"},
				Token: "jwt-token-here",
			},
		}
		h := handler.NewAuthHandler(mock, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/login",
			bytes.NewBufferString(`{"username":"alice@example.com","password":"secret123"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
		}
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "jwt-token-here", resp.AccessToken)
		assert.Equal(t, "bearer", resp.TokenType)
	})

	t.Run("bad credentials map to 401", func(t *testing.T) {
		mock := &MockAuthService{LoginErr: apperror.InvalidCredentials()}
		h := handler.NewAuthHandler(mock, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/login",
			bytes.NewBufferString(`{"username":"alice@example.com","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid_credentials")
	})

	t.Run("email field accepted as identifier alias", func(t *testing.T) {
		mock := &MockAuthService{
			LoginResult: &service.AuthResult{User: &model.User{ID: "u1"}, Token: "tok"},
		}
		h := handler.NewAuthHandler(mock, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/login",
			bytes.NewBufferString(`{"email":"alice@example.com","password":"secret123"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "alice@example.com", mock.CapturedEmail)
	})
}

func TestAuthHandler_HandleMe(t *testing.T) {
	t.Run("returns the authenticated user's profile", func(t *testing.T) {
		lastLogin := time.Now()
		mock := &MockAuthService{
			MeUser: &model.User{
				ID: "u1", Email: "alice@example.com", Role: model.RoleUser, LastLogin: &lastLogin,
			},
		}
		h := handler.NewAuthHandler(mock, nil, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req = req.WithContext(auth.ContextWithSubject(req.Context(), "alice@example.com"))
		rr := httptest.NewRecorder()

		h.HandleMe(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "alice@example.com", mock.CapturedEmail)

		var user model.User
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
		assert.Equal(t, "u1", user.ID)
	})

	t.Run("missing subject yields 401", func(t *testing.T) {
		h := handler.NewAuthHandler(&MockAuthService{}, nil, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		rr := httptest.NewRecorder()

		h.HandleMe(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

// MockGitHub implements handler.GitHubAuthenticator.
type MockGitHub struct {
	User        *auth.GitHubUser
	ExchangeErr error
}

func (m *MockGitHub) AuthURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (m *MockGitHub) Exchange(ctx context.Context, code string) (*auth.GitHubUser, error) {
	if m.ExchangeErr != nil {
		return nil, m.ExchangeErr
	}
	return m.User, nil
}

func TestAuthHandler_GitHubFlow(t *testing.T) {
	t.Run("login redirects with state cookie", func(t *testing.T) {
		h := handler.NewAuthHandler(&MockAuthService{}, &MockGitHub{}, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/auth/github/login", nil)
		rr := httptest.NewRecorder()

		h.HandleGitHubLogin(rr, req)

		assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)

		cookies := rr.Result().Cookies()
		var state string
		for _, c := range cookies {
			if c.Name == "oauth_state" {
				state = c.Value
			}
		}
		assert.NotEmpty(t, state)
		assert.Contains(t, rr.Header().Get("Location"), "state="+state)
	})

	t.Run("callback with matching state returns token", func(t *testing.T) {
		mock := &MockAuthService{
			GitHubResult: &service.AuthResult{
				User:  &model.User{ID: "u1", Email: "octocat@github.com"},
				Token: "github-jwt",
			},
		}
		gh := &MockGitHub{User: &auth.GitHubUser{ID: 42, Login: "octocat", Email: "octocat@github.com"}}
		h := handler.NewAuthHandler(mock, gh, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=abc&state=xyz", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
		rr := httptest.NewRecorder()

		h.HandleGitHubCallback(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "github-jwt")
	})

	t.Run("callback with mismatched state rejected", func(t *testing.T) {
		h := handler.NewAuthHandler(&MockAuthService{}, &MockGitHub{}, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=abc&state=attacker", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
		rr := httptest.NewRecorder()

		h.HandleGitHubCallback(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("callback without state cookie rejected", func(t *testing.T) {
		h := handler.NewAuthHandler(&MockAuthService{}, &MockGitHub{}, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=abc&state=xyz", nil)
		rr := httptest.NewRecorder()

		h.HandleGitHubCallback(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
