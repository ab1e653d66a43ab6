package server_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/sentiment-api/internal/server"
)

// newTestServer wires a full server against an in-memory database and a
// stub inference service, and returns its router for httptest-driven
// requests.
func newTestServer(t *testing.T, inferenceLabel string) http.Handler {
	t.Helper()
	return newTestServerHandle(t, inferenceLabel).Router()
}

// newTestServerHandle is newTestServer for tests that need the server
// itself, not just its router.
func newTestServerHandle(t *testing.T, inferenceLabel string) *server.Server {
	t.Helper()

	inference := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"label": inferenceLabel, "score": 0.9})
	}))
	t.Cleanup(inference.Close)

	srv, err := server.New(server.Config{
		Port:             0,
		DBPath:           ":memory:",
		JWTSecret:        "test-secret-at-least-16-chars!!",
		InferenceURL:     inference.URL,
		EmailIdentifiers: true,
	}, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	return srv
}

// doJSON performs a request with an optional JSON body and bearer token.
func doJSON(router http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// loginToken registers a user and logs them in, returning the token.
func loginToken(t *testing.T, router http.Handler, email, password string) string {
	t.Helper()

	creds := `{"username":"` + email + `","password":"` + password + `"}`
	if rr := doJSON(router, http.MethodPost, "/register", creds, ""); rr.Code != http.StatusCreated {
		t.Fatalf("register: status %d, body %s", rr.Code, rr.Body.String())
	}

	rr := doJSON(router, http.MethodPost, "/login", creds, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	return resp.AccessToken
}

func TestServer_RegisterLoginAnalyzeRoundTrip(t *testing.T) {
	router := newTestServer(t, "LABEL_2")
	token := loginToken(t, router, "alice@example.com", "secret123")

	// Analyze some text — the stub model says LABEL_2 → POSITIVE
	rr := doJSON(router, http.MethodPost, "/api/analyze", `{"text":"I love this"}`, token)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "POSITIVE")

	// The entry shows up in the user's history
	rr = doJSON(router, http.MethodGet, "/api/sentiments", "", token)
	assert.Equal(t, http.StatusOK, rr.Code)

	var entries []map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&entries))
	assert.Len(t, entries, 1)
	assert.Equal(t, "I love this", entries[0]["text"])

	// The login shows up in the audit history
	rr = doJSON(router, http.MethodGet, "/api/login-history", "", token)
	assert.Equal(t, http.StatusOK, rr.Code)

	var events []map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&events))
	assert.Len(t, events, 1)
}

func TestServer_ProtectedRoutesRequireToken(t *testing.T) {
	router := newTestServer(t, "LABEL_1")

	protected := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/analyze"},
		{http.MethodGet, "/api/me"},
		{http.MethodGet, "/api/sentiments"},
		{http.MethodGet, "/api/login-history"},
		{http.MethodGet, "/api/admin/sentiments"},
	}

	for _, route := range protected {
		t.Run(route.method+" "+route.target, func(t *testing.T) {
			rr := doJSON(router, route.method, route.target, "", "")
			assert.Equal(t, http.StatusUnauthorized, rr.Code)

			rr = doJSON(router, route.method, route.target, "", "this.is.garbage")
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestServer_MeReturnsProfile(t *testing.T) {
	router := newTestServer(t, "LABEL_1")
	token := loginToken(t, router, "alice@example.com", "secret123")

	rr := doJSON(router, http.MethodGet, "/api/me", "", token)
	assert.Equal(t, http.StatusOK, rr.Code)

	var user map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "USER", user["role"])
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestServer_AdminRouteForbiddenForRegularUsers(t *testing.T) {
	router := newTestServer(t, "LABEL_0")
	token := loginToken(t, router, "alice@example.com", "secret123")

	rr := doJSON(router, http.MethodGet, "/api/admin/sentiments", "", token)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestServer_LoginFailuresAreUniform(t *testing.T) {
	router := newTestServer(t, "LABEL_1")
	_ = loginToken(t, router, "alice@example.com", "secret123")

	wrongPw := doJSON(router, http.MethodPost, "/login",
		`{"username":"alice@example.com","password":"wrong"}`, "")
	unknown := doJSON(router, http.MethodPost, "/login",
		`{"username":"nobody@example.com","password":"secret123"}`, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrongPw.Body.String(), unknown.Body.String())
}

func TestServer_DuplicateRegistrationConflicts(t *testing.T) {
	router := newTestServer(t, "LABEL_1")

	creds := `{"username":"alice@example.com","password":"secret123"}`
	rr := doJSON(router, http.MethodPost, "/register", creds, "")
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(router, http.MethodPost, "/register", creds, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestServer_StorageOutageReportsUnavailable(t *testing.T) {
	srv := newTestServerHandle(t, "LABEL_1")
	router := srv.Router()
	token := loginToken(t, router, "alice@example.com", "secret123")

	// Take the database away from under a live session. The token is
	// still valid — the failure is the backend's, so the answer is 503,
	// not 401 and not a generic 500.
	srv.Close()

	rr := doJSON(router, http.MethodGet, "/api/me", "", token)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "unavailable")

	rr = doJSON(router, http.MethodGet, "/api/sentiments", "", token)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "unavailable")
}

func TestServer_Healthz(t *testing.T) {
	router := newTestServer(t, "LABEL_1")

	rr := doJSON(router, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
