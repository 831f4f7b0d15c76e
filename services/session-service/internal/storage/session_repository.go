package storage

import (
	"context"
	"errors"
	"time"

	"github.com/coachdesk/coachdesk/libs/db"
	"github.com/coachdesk/coachdesk/services/session-service/internal/history"
	"github.com/coachdesk/coachdesk/services/session-service/internal/model"
	"github.com/coachdesk/coachdesk/services/session-service/internal/outbox"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound means no session exists with the given id.
	ErrNotFound = errors.New("session not found")
	// ErrNotCancellable means the guarded update matched no row because the
	// session already left the scheduled state (e.g. the other party
	// cancelled first).
	ErrNotCancellable = errors.New("session not in a cancellable state")
)

type SessionRepository struct {
	pool    *db.Pool
	history *history.Repository
	outbox  *outbox.Repository
}

func NewSessionRepository(pool *db.Pool, historyRepo *history.Repository, outboxRepo *outbox.Repository) *SessionRepository {
	return &SessionRepository{pool: pool, history: historyRepo, outbox: outboxRepo}
}

// CancelUpdate carries everything the cancellation transaction writes: the
// session state change, the audit entry, and the outbox event. All three
// commit or roll back together.
type CancelUpdate struct {
	SessionID   string
	CancelledBy string
	Reason      string
	CancelledAt time.Time
	History     history.Entry
	Event       outbox.Event
}

// CreateSession inserts the session together with its "booked" history entry
// and outbox event in one transaction.
func (r *SessionRepository) CreateSession(ctx context.Context, sess *model.Session, entry history.Entry, evt outbox.Event) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO sessions (client_id, consultant_id, scheduled_at, duration_minutes, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text
	`, sess.ClientID, sess.ConsultantID, sess.ScheduledAt, sess.DurationMinutes, sess.Status).Scan(&id)
	if err != nil {
		return "", err
	}

	entry.SessionID = id
	if err := r.history.Append(ctx, tx, entry); err != nil {
		return "", err
	}
	evt.AggregateID = id
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (r *SessionRepository) GetSession(ctx context.Context, id string) (model.Session, error) {
	var sess model.Session
	var cancelledAt *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, client_id::text, consultant_id::text, scheduled_at, duration_minutes,
			status, cancelled_at, COALESCE(cancelled_by::text, ''), COALESCE(cancellation_reason, ''), created_at
		FROM sessions
		WHERE id = $1
	`, id).Scan(
		&sess.ID,
		&sess.ClientID,
		&sess.ConsultantID,
		&sess.ScheduledAt,
		&sess.DurationMinutes,
		&sess.Status,
		&cancelledAt,
		&sess.CancelledBy,
		&sess.CancelReason,
		&sess.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, err
	}
	sess.CancelledAt = cancelledAt
	return sess, nil
}

// CancelScheduled flips the session to cancelled, appends the audit entry, and
// inserts the outbox event as a single transaction. The update is guarded by
// status so a concurrent cancellation makes exactly one caller win; the loser
// gets ErrNotCancellable.
func (r *SessionRepository) CancelScheduled(ctx context.Context, upd CancelUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE sessions
		SET status = 'cancelled',
			cancelled_at = $2,
			cancelled_by = $3,
			cancellation_reason = $4
		WHERE id = $1 AND status = 'scheduled'
	`, upd.SessionID, upd.CancelledAt, upd.CancelledBy, upd.Reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM sessions WHERE id = $1`, upd.SessionID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrNotCancellable
	}

	if err := r.history.Append(ctx, tx, upd.History); err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, upd.Event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *SessionRepository) ListByParty(ctx context.Context, partyID string, limit int) ([]model.Session, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, client_id::text, consultant_id::text, scheduled_at, duration_minutes,
			status, cancelled_at, COALESCE(cancelled_by::text, ''), COALESCE(cancellation_reason, ''), created_at
		FROM sessions
		WHERE client_id = $1 OR consultant_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2
	`, partyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		var cancelledAt *time.Time
		if err := rows.Scan(
			&sess.ID,
			&sess.ClientID,
			&sess.ConsultantID,
			&sess.ScheduledAt,
			&sess.DurationMinutes,
			&sess.Status,
			&cancelledAt,
			&sess.CancelledBy,
			&sess.CancelReason,
			&sess.CreatedAt,
		); err != nil {
			return nil, err
		}
		sess.CancelledAt = cancelledAt
		sessions = append(sessions, sess)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return sessions, nil
}
