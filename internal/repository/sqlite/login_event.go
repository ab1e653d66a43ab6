package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/sentiment-api/internal/apperror"
	"github.com/sakif/sentiment-api/internal/clock"
	"github.com/sakif/sentiment-api/internal/model"
	"github.com/sakif/sentiment-api/internal/repository"
)

// LoginEventDB implements repository.LoginEventRepository.
//
// This is the read side of the audit trail; the only writer is
// UserDB.RecordLogin, inside its transaction.
type LoginEventDB struct {
	conn *sql.DB
}

var _ repository.LoginEventRepository = (*LoginEventDB)(nil)

// HistoryFor returns a user's login events, newest first. An empty slice
// means the user has never logged in — not an error.
func (l *LoginEventDB) HistoryFor(ctx context.Context, userID string) ([]model.LoginEvent, error) {
	rows, err := l.conn.QueryContext(ctx,
		`SELECT id, user_id, login_time
		 FROM login_events
		 WHERE user_id = ?
		 ORDER BY login_time DESC`,
		userID,
	)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("sqlite: querying login history for %s: %w", userID, err))
	}
	defer rows.Close()

	events := []model.LoginEvent{}
	for rows.Next() {
		var e model.LoginEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.LoginTime); err != nil {
			return nil, apperror.Unavailable(fmt.Errorf("sqlite: scanning login event: %w", err))
		}
		e.LoginTime = e.LoginTime.In(clock.IST())
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("sqlite: iterating login events: %w", err))
	}

	return events, nil
}
