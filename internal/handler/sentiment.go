package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/sentiment-api/internal/apperror"
	"github.com/sakif/sentiment-api/internal/auth"
	"github.com/sakif/sentiment-api/internal/model"
)

// SentimentService is the slice of the service layer the sentiment
// handler needs.
type SentimentService interface {
	Analyze(ctx context.Context, userID, text string) (*model.SentimentEntry, error)
	HistoryFor(ctx context.Context, userID string) ([]model.SentimentEntry, error)
	LoginHistoryFor(ctx context.Context, userID string) ([]model.LoginEvent, error)
	AllUsersSentiments(ctx context.Context, requester *model.User) (map[string]map[string]model.Sentiment, error)
}

// SentimentHandler serves text analysis, the user's own histories, and
// the admin aggregation view.
//
// All routes here sit behind RequireAuth, so the subject (login
// identifier) is always in the request context. The handler resolves it
// to a user once per request; ownership of histories follows from that —
// a user can only ever query their own ID.
type SentimentHandler struct {
	sentiments SentimentService
	auth       AuthService
	logger     *slog.Logger
}

// NewSentimentHandler creates a SentimentHandler.
func NewSentimentHandler(sentiments SentimentService, authSvc AuthService, logger *slog.Logger) *SentimentHandler {
	return &SentimentHandler{
		sentiments: sentiments,
		auth:       authSvc,
		logger:     logger,
	}
}

// requestUser resolves the authenticated subject to the full user
// record. Returns nil after writing the error response when resolution
// fails.
func (h *SentimentHandler) requestUser(w http.ResponseWriter, r *http.Request) *model.User {
	email, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "authentication required",
		})
		return nil
	}

	user, err := h.auth.GetUserByEmail(r.Context(), email)
	if err != nil {
		// A valid token for a vanished account — treat as unauthorized,
		// not 404: the resource here is the session, not the user row.
		// Anything else (storage down, say) is not the caller's fault and
		// keeps its own category.
		if errors.Is(err, apperror.ErrNotFound) {
			h.logger.Warn("token subject no longer exists", slog.String("email", email))
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "authentication required",
			})
			return nil
		}
		h.logger.Error("resolving token subject", slog.String("email", email), slog.String("error", err.Error()))
		writeError(w, err)
		return nil
	}
	return user
}

// analyzeRequest is the request body for text analysis.
type analyzeRequest struct {
	Text string `json:"text"`
}

// HandleAnalyze classifies a piece of text and records the result.
//
// HTTP: POST /api/analyze
// Body: {"text": "..."}
// Auth: Required
//
// Responds 200 with the stored entry — id, text, sentiment, and the
// timestamp it was recorded at.
func (h *SentimentHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	user := h.requestUser(w, r)
	if user == nil {
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid analyze request body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "malformed request body",
		})
		return
	}

	entry, err := h.sentiments.Analyze(r.Context(), user.ID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// HandleSentimentHistory returns the authenticated user's analyzed
// texts, newest first.
//
// HTTP: GET /api/sentiments
// Auth: Required
func (h *SentimentHandler) HandleSentimentHistory(w http.ResponseWriter, r *http.Request) {
	user := h.requestUser(w, r)
	if user == nil {
		return
	}

	entries, err := h.sentiments.HistoryFor(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// HandleLoginHistory returns the authenticated user's login events,
// newest first.
//
// HTTP: GET /api/login-history
// Auth: Required
func (h *SentimentHandler) HandleLoginHistory(w http.ResponseWriter, r *http.Request) {
	user := h.requestUser(w, r)
	if user == nil {
		return
	}

	events, err := h.sentiments.LoginHistoryFor(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// HandleAdminAllSentiments returns every user's analyzed texts with
// their most recent label, keyed by login identifier.
//
// HTTP: GET /api/admin/sentiments
// Auth: Required, ADMIN role
//
// The role check lives in the service layer; a non-admin gets 403 via
// the usual error mapping.
func (h *SentimentHandler) HandleAdminAllSentiments(w http.ResponseWriter, r *http.Request) {
	user := h.requestUser(w, r)
	if user == nil {
		return
	}

	grouped, err := h.sentiments.AllUsersSentiments(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, grouped)
}
