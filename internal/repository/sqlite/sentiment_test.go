package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/sentiment-api/internal/model"
)

// recordTestSentiment appends an entry and fails the test if it errors.
func recordTestSentiment(t *testing.T, s *SentimentDB, userID, text string, sentiment model.Sentiment) *model.SentimentEntry {
	t.Helper()
	entry := &model.SentimentEntry{
		UserID:    userID,
		Text:      text,
		Sentiment: sentiment,
	}
	if err := s.Create(context.Background(), entry); err != nil {
		t.Fatalf("failed to record test sentiment: %v", err)
	}
	return entry
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestSentimentCreate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "a@x.com")
	s := db.Sentiments()

	entry := &model.SentimentEntry{
		UserID:    user.ID,
		Text:      "I love this",
		Sentiment: model.SentimentPositive,
	}
	if err := s.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if entry.ID == "" {
		t.Error("Create() did not set entry.ID")
	}
	if entry.Timestamp.IsZero() {
		t.Error("Create() did not set entry.Timestamp")
	}
}

func TestSentimentCreate_UnknownUserRejectedByForeignKey(t *testing.T) {
	db := newTestDB(t)
	s := db.Sentiments()

	entry := &model.SentimentEntry{
		UserID:    "no-such-user",
		Text:      "orphan entry",
		Sentiment: model.SentimentNeutral,
	}
	if err := s.Create(context.Background(), entry); err == nil {
		t.Fatal("Create() should fail when user_id references no user (FK enforcement)")
	}
}

// =========================================================================
// HISTORY TESTS
// =========================================================================

func TestSentimentHistoryFor_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "a@x.com")
	s := db.Sentiments()

	recordTestSentiment(t, s, user.ID, "first", model.SentimentNegative)
	recordTestSentiment(t, s, user.ID, "second", model.SentimentNeutral)
	latest := recordTestSentiment(t, s, user.ID, "I love this", model.SentimentPositive)

	entries, err := s.HistoryFor(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("HistoryFor() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	// The most recent entry appears first
	if entries[0].ID != latest.ID {
		t.Errorf("entries[0].Text = %q, want %q (newest first)", entries[0].Text, latest.Text)
	}
	for i := 0; i < len(entries)-1; i++ {
		if entries[i].Timestamp.Before(entries[i+1].Timestamp) {
			t.Errorf("entries out of order at index %d", i)
		}
	}
}

func TestSentimentHistoryFor_OnlyOwnEntries(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db.Users(), "alice@x.com")
	bob := createTestUser(t, db.Users(), "bob@x.com")
	s := db.Sentiments()

	recordTestSentiment(t, s, alice.ID, "alice text", model.SentimentPositive)
	recordTestSentiment(t, s, bob.ID, "bob text", model.SentimentNegative)

	entries, err := s.HistoryFor(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("HistoryFor() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "alice text" {
		t.Errorf("HistoryFor(alice) = %+v, want only alice's entry", entries)
	}
}

func TestSentimentHistoryFor_Empty(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "quiet@x.com")

	entries, err := db.Sentiments().HistoryFor(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("HistoryFor() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

// =========================================================================
// AGGREGATION TESTS
// =========================================================================

func TestAllGroupedByUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db.Users(), "alice@x.com")
	bob := createTestUser(t, db.Users(), "bob@x.com")
	createTestUser(t, db.Users(), "silent@x.com") // no entries
	s := db.Sentiments()

	recordTestSentiment(t, s, alice.ID, "great day", model.SentimentPositive)
	recordTestSentiment(t, s, alice.ID, "bad traffic", model.SentimentNegative)
	recordTestSentiment(t, s, bob.ID, "fine", model.SentimentNeutral)

	grouped, err := s.AllGroupedByUser(context.Background())
	if err != nil {
		t.Fatalf("AllGroupedByUser() error = %v", err)
	}

	// The query covers users with at least one entry; the service layer
	// backfills the rest from the user list
	if len(grouped) != 2 {
		t.Fatalf("got %d users in aggregation, want 2", len(grouped))
	}
	if _, ok := grouped["silent@x.com"]; ok {
		t.Error("user with no entries must not appear in the query result")
	}

	if got := grouped["alice@x.com"]["great day"]; got != model.SentimentPositive {
		t.Errorf("alice/great day = %q, want POSITIVE", got)
	}
	if got := grouped["alice@x.com"]["bad traffic"]; got != model.SentimentNegative {
		t.Errorf("alice/bad traffic = %q, want NEGATIVE", got)
	}
	if got := grouped["bob@x.com"]["fine"]; got != model.SentimentNeutral {
		t.Errorf("bob/fine = %q, want NEUTRAL", got)
	}
}

func TestAllGroupedByUser_RepeatedTextKeepsLatestLabel(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "a@x.com")
	s := db.Sentiments()

	recordTestSentiment(t, s, user.ID, "it changed", model.SentimentNegative)
	recordTestSentiment(t, s, user.ID, "it changed", model.SentimentPositive)

	grouped, err := s.AllGroupedByUser(context.Background())
	if err != nil {
		t.Fatalf("AllGroupedByUser() error = %v", err)
	}
	if got := grouped["a@x.com"]["it changed"]; got != model.SentimentPositive {
		t.Errorf("repeated text label = %q, want the most recent (POSITIVE)", got)
	}
}

func TestAllGroupedByUser_EmptyDatabase(t *testing.T) {
	db := newTestDB(t)

	grouped, err := db.Sentiments().AllGroupedByUser(context.Background())
	if err != nil {
		t.Fatalf("AllGroupedByUser() error = %v", err)
	}
	if len(grouped) != 0 {
		t.Errorf("got %d users, want 0", len(grouped))
	}
}
