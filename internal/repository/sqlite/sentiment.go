package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/sentiment-api/internal/apperror"
	"github.com/sakif/sentiment-api/internal/clock"
	"github.com/sakif/sentiment-api/internal/model"
	"github.com/sakif/sentiment-api/internal/repository"
)

// SentimentDB implements repository.SentimentRepository.
type SentimentDB struct {
	conn *sql.DB
}

var _ repository.SentimentRepository = (*SentimentDB)(nil)

// Create appends one classification record, generating its ID and
// timestamp. Entries are immutable — there is no update path.
func (s *SentimentDB) Create(ctx context.Context, entry *model.SentimentEntry) error {
	entry.ID = xid.New().String()
	entry.Timestamp = clock.Now()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sentiments (id, user_id, text, sentiment, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Text,
		string(entry.Sentiment),
		entry.Timestamp,
	)
	if err != nil {
		return apperror.Unavailable(fmt.Errorf("sqlite: inserting sentiment entry for %s: %w", entry.UserID, err))
	}

	return nil
}

// HistoryFor returns a user's entries, newest first.
func (s *SentimentDB) HistoryFor(ctx context.Context, userID string) ([]model.SentimentEntry, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, text, sentiment, timestamp
		 FROM sentiments
		 WHERE user_id = ?
		 ORDER BY timestamp DESC`,
		userID,
	)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("sqlite: querying sentiment history for %s: %w", userID, err))
	}
	defer rows.Close()

	entries := []model.SentimentEntry{}
	for rows.Next() {
		e, err := scanSentiment(rows)
		if err != nil {
			return nil, apperror.Unavailable(err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("sqlite: iterating sentiment entries: %w", err))
	}

	return entries, nil
}

// AllGroupedByUser builds the administrative aggregation view: for every
// user with at least one entry, email → (text → sentiment).
//
// One JOIN replaces the per-user query loop a naive implementation would
// run. Rows arrive oldest first, so when the same user analyzed the same
// text twice, the later row overwrites the earlier one in the map and
// the most recent label wins.
func (s *SentimentDB) AllGroupedByUser(ctx context.Context) (map[string]map[string]model.Sentiment, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT u.email, s.text, s.sentiment
		 FROM sentiments s
		 JOIN users u ON u.id = s.user_id
		 ORDER BY s.timestamp ASC`,
	)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("sqlite: querying sentiment aggregation: %w", err))
	}
	defer rows.Close()

	result := map[string]map[string]model.Sentiment{}
	for rows.Next() {
		var email, text, sentiment string
		if err := rows.Scan(&email, &text, &sentiment); err != nil {
			return nil, apperror.Unavailable(fmt.Errorf("sqlite: scanning aggregation row: %w", err))
		}
		if result[email] == nil {
			result[email] = map[string]model.Sentiment{}
		}
		result[email][text] = model.Sentiment(sentiment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("sqlite: iterating aggregation rows: %w", err))
	}

	return result, nil
}

func scanSentiment(sc scanner) (*model.SentimentEntry, error) {
	var (
		e         model.SentimentEntry
		sentiment string
	)
	if err := sc.Scan(&e.ID, &e.UserID, &e.Text, &sentiment, &e.Timestamp); err != nil {
		return nil, fmt.Errorf("sqlite: scanning sentiment entry: %w", err)
	}
	e.Sentiment = model.Sentiment(sentiment)
	e.Timestamp = e.Timestamp.In(clock.IST())
	return &e, nil
}
