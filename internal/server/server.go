// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer — it connects handlers, middleware,
// and routes. It is the composition root: all dependencies are assembled
// in one place (New/setupRoutes) rather than scattered across the
// codebase, and main.go stays minimal — just "load config, start the
// server".
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/sentiment-api/internal/auth"
	"github.com/sakif/sentiment-api/internal/handler"
	"github.com/sakif/sentiment-api/internal/middleware"
	sqliteRepo "github.com/sakif/sentiment-api/internal/repository/sqlite"
	"github.com/sakif/sentiment-api/internal/sentiment"
	"github.com/sakif/sentiment-api/internal/service"
)

// Config holds server configuration. Using a struct (instead of
// individual parameters) means new options don't change function
// signatures, and everything is loaded from the environment in one
// place (main.go).
type Config struct {
	Port             int
	DBPath           string
	JWTSecret        string
	TokenTTL         time.Duration
	InferenceURL     string
	EmailIdentifiers bool

	// GitHub OAuth is optional; the routes are mounted only when both
	// client values are present.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection. When it shuts down, the
// connection must be closed to flush the WAL and release the file lock;
// Start() handles that during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server with the given config and wires the full
// dependency chain:
//
//  1. Database connection (sqlite.New)
//  2. Auth primitives (password hasher, token service, OAuth provider)
//  3. Services, each receiving repository interfaces
//  4. Handlers, each receiving services
//
// Each layer only receives what it needs: services get repository
// interfaces (not the concrete sqlite.DB), handlers get services (not
// repositories). The handler never touches the database; the service
// never touches HTTP.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                → liveness probe
//	POST /register               → create an account
//	POST /login                  → credentials → bearer token
//	GET  /auth/github/login      → redirect to GitHub (when configured)
//	GET  /auth/github/callback   → OAuth callback → bearer token
//	POST /api/analyze            → classify text            [auth]
//	GET  /api/me                 → current user profile     [auth]
//	GET  /api/sentiments         → own analysis history     [auth]
//	GET  /api/login-history      → own login events         [auth]
//	GET  /api/admin/sentiments   → all users' labels        [auth, ADMIN]
//
// MIDDLEWARE ORDER MATTERS — middleware executes in the order it's
// added: RequestID (tracing) → RealIP (proxy headers) → Recoverer
// (panic → 500) → request logging.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Auth primitives ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	// === Services ===
	authService := service.NewAuthService(
		s.db.Users(), tokens, passwords,
		service.AuthConfig{EmailIdentifiers: s.config.EmailIdentifiers},
		s.logger,
	)

	classifier := sentiment.NewHTTPClassifier(s.config.InferenceURL)
	sentimentService := service.NewSentimentService(
		s.db.Sentiments(), s.db.LoginEvents(), s.db.Users(), classifier, s.logger,
	)

	// === Handlers ===
	var github handler.GitHubAuthenticator
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	}
	authHandler := handler.NewAuthHandler(authService, github, s.logger)
	sentimentHandler := handler.NewSentimentHandler(sentimentService, authService, s.logger)

	// === Public routes ===
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/register", authHandler.HandleRegister)
	s.router.Post("/login", authHandler.HandleLogin)

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	} else {
		s.logger.Info("GitHub OAuth not configured; OAuth routes disabled")
	}

	// === Protected routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Post("/analyze", sentimentHandler.HandleAnalyze)
		r.Get("/me", authHandler.HandleMe)
		r.Get("/sentiments", sentimentHandler.HandleSentimentHistory)
		r.Get("/login-history", sentimentHandler.HandleLoginHistory)
		r.Get("/admin/sentiments", sentimentHandler.HandleAdminAllSentiments)
	})

	return nil
}

// handleHealth answers liveness probes. It pings the database so a
// wedged connection shows up here before it shows up in user requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check: database unreachable", slog.String("error", err.Error()))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Router exposes the configured chi router, mainly for tests that want
// to drive the full HTTP stack with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases the server's resources without going through the
// signal-driven Start loop. Tests use this; production shutdown runs
// through Start.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
//
// The `defer s.db.Close()` ensures step 3 happens even if something
// panics.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("inference", s.config.InferenceURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
