package history

import (
	"context"
	"time"

	"github.com/coachdesk/coachdesk/libs/db"
	"github.com/jackc/pgx/v5"
)

const (
	ActionBooked    = "booked"
	ActionCancelled = "cancelled"
)

// Entry is one immutable audit record for a session. ScheduledAt captures the
// session time at the moment of the action, so later reschedules (if ever
// added) cannot rewrite what the entry witnessed.
type Entry struct {
	ID          int64
	SessionID   string
	Action      string
	ActorID     string
	Reason      string
	ScheduledAt time.Time
	CreatedAt   time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append writes an entry inside the caller's transaction so the audit record
// commits or rolls back together with the state change it describes.
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, e Entry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO session_history (session_id, action, actor_id, reason, scheduled_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
	`, e.SessionID, e.Action, e.ActorID, e.Reason, e.ScheduledAt)
	return err
}

func (r *Repository) ListBySession(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id::text, action, COALESCE(actor_id::text, ''), reason, scheduled_at, created_at
		FROM session_history
		WHERE session_id = $1
		ORDER BY id ASC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Action, &e.ActorID, &e.Reason, &e.ScheduledAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}
