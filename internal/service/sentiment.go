package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/sentiment-api/internal/apperror"
	"github.com/sakif/sentiment-api/internal/model"
	"github.com/sakif/sentiment-api/internal/repository"
	"github.com/sakif/sentiment-api/internal/sentiment"
)

// MaxTextLength bounds analyze requests. The inference model truncates
// around 512 tokens anyway; rejecting early keeps pathological payloads
// out of the database.
const MaxTextLength = 5000

// SentimentService owns text analysis, per-user history, and the admin
// aggregation view.
type SentimentService struct {
	sentiments repository.SentimentRepository
	logins     repository.LoginEventRepository
	users      repository.UserRepository
	classifier sentiment.Classifier
	logger     *slog.Logger
}

// NewSentimentService creates a SentimentService with all required
// dependencies.
func NewSentimentService(
	sentiments repository.SentimentRepository,
	logins repository.LoginEventRepository,
	users repository.UserRepository,
	classifier sentiment.Classifier,
	logger *slog.Logger,
) *SentimentService {
	return &SentimentService{
		sentiments: sentiments,
		logins:     logins,
		users:      users,
		classifier: classifier,
		logger:     logger,
	}
}

// Analyze classifies text for a user and persists the result.
//
// DEGRADED-MODE POLICY:
// When the inference service fails — unreachable, non-200, or a label
// outside the known set — the entry is still recorded, labeled NEUTRAL.
// The user gets an answer and an audit trail entry either way; the
// failure is visible only in the logs. Losing the record because a
// collaborator hiccuped would be worse than an imprecise label.
//
// A storage failure, by contrast, IS surfaced: a record we couldn't
// persist never happened.
func (s *SentimentService) Analyze(ctx context.Context, userID, text string) (*model.SentimentEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "text is required")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, apperror.ValidationFailed("text",
			fmt.Sprintf("text must be at most %d characters", MaxTextLength))
	}

	label, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.logger.Warn("classification failed, falling back to NEUTRAL",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		label = model.SentimentNeutral
	}

	entry := &model.SentimentEntry{
		UserID:    userID,
		Text:      text,
		Sentiment: label,
	}
	if err := s.sentiments.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("service/sentiment: recording entry for %s: %w", userID, err)
	}

	s.logger.Info("text analyzed",
		slog.String("userID", userID),
		slog.String("sentiment", string(label)),
	)
	return entry, nil
}

// HistoryFor returns a user's sentiment entries, newest first. A user
// with no entries gets an empty slice, not an error.
func (s *SentimentService) HistoryFor(ctx context.Context, userID string) ([]model.SentimentEntry, error) {
	entries, err := s.sentiments.HistoryFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/sentiment: loading history for %s: %w", userID, err)
	}
	return entries, nil
}

// LoginHistoryFor returns a user's login events, newest first.
func (s *SentimentService) LoginHistoryFor(ctx context.Context, userID string) ([]model.LoginEvent, error) {
	events, err := s.logins.HistoryFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/sentiment: loading login history for %s: %w", userID, err)
	}
	return events, nil
}

// AllUsersSentiments returns every user's analyzed texts with their most
// recent label, keyed by login identifier. Only admins may call it; the
// requester's role is checked here, not in the handler, so the rule holds
// no matter which surface reaches the service.
//
// Every registered user appears in the result. The aggregation query only
// yields users with at least one entry, so the user list backfills the
// rest with an empty map — the admin view answers "what has everyone
// analyzed", and "nothing yet" is an answer.
func (s *SentimentService) AllUsersSentiments(ctx context.Context, requester *model.User) (map[string]map[string]model.Sentiment, error) {
	if requester == nil || !requester.IsAdmin() {
		return nil, apperror.Forbidden("admin role required")
	}

	grouped, err := s.sentiments.AllGroupedByUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/sentiment: aggregating sentiments: %w", err)
	}

	all, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/sentiment: listing users for aggregation: %w", err)
	}
	for _, u := range all {
		if grouped[u.Email] == nil {
			grouped[u.Email] = map[string]model.Sentiment{}
		}
	}

	s.logger.Info("admin aggregation served",
		slog.String("requestedBy", requester.Email),
		slog.Int("users", len(grouped)),
	)
	return grouped, nil
}
