package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coachdesk/coachdesk/services/session-service/internal/history"
	"github.com/coachdesk/coachdesk/services/session-service/internal/model"
	"github.com/coachdesk/coachdesk/services/session-service/internal/outbox"
	"github.com/coachdesk/coachdesk/services/session-service/internal/policy"
	"github.com/coachdesk/coachdesk/services/session-service/internal/storage"
)

// Store is the session persistence contract. The production implementation is
// storage.SessionRepository; it must apply each CancelUpdate atomically
// (state change + audit entry + outbox event) and guard the update so only
// one cancellation of a session ever succeeds.
type Store interface {
	GetSession(ctx context.Context, id string) (model.Session, error)
	CreateSession(ctx context.Context, sess *model.Session, entry history.Entry, evt outbox.Event) (string, error)
	CancelScheduled(ctx context.Context, upd storage.CancelUpdate) error
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

type BookRequest struct {
	ClientID        string
	ConsultantID    string
	ScheduledAt     time.Time
	DurationMinutes int
}

var ErrInvalidBooking = errors.New("invalid booking request")

func (s *Service) Book(ctx context.Context, req BookRequest) (string, error) {
	if req.ClientID == "" || req.ConsultantID == "" {
		return "", fmt.Errorf("%w: client and consultant required", ErrInvalidBooking)
	}
	if req.ClientID == req.ConsultantID {
		return "", fmt.Errorf("%w: client and consultant must differ", ErrInvalidBooking)
	}
	now := time.Now().UTC()
	if !req.ScheduledAt.After(now) {
		return "", fmt.Errorf("%w: scheduled_at must be in the future", ErrInvalidBooking)
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 60
	}

	sess := &model.Session{
		ClientID:        req.ClientID,
		ConsultantID:    req.ConsultantID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Status:          model.StatusScheduled,
	}

	payload, err := json.Marshal(map[string]any{
		"client_id":     sess.ClientID,
		"consultant_id": sess.ConsultantID,
		"scheduled_at":  sess.ScheduledAt.Format(time.RFC3339),
		"duration_min":  sess.DurationMinutes,
	})
	if err != nil {
		return "", err
	}

	id, err := s.store.CreateSession(ctx, sess,
		history.Entry{
			Action:      history.ActionBooked,
			ActorID:     req.ClientID,
			ScheduledAt: sess.ScheduledAt,
		},
		outbox.Event{
			AggregateType: "session",
			EventType:     "sessions.session.booked.v1",
			Payload:       payload,
		},
	)
	if err != nil {
		return "", err
	}
	s.logger.Info("session booked", "session_id", id, "consultant_id", sess.ConsultantID)
	return id, nil
}

// CancelResult mirrors the caller-facing contract: either OK with the
// cancellation facts, or a policy failure. Refunded is always false; fees
// are never refunded on cancellation.
type CancelResult struct {
	OK             bool
	Failure        policy.Failure
	HoursRemaining int
	SessionID      string
	CancelledAt    time.Time
	Refunded       bool
}

// Cancel runs the cancellation policy and, when allowed, performs the state
// transition together with its audit entry and outbox event as one unit.
// Policy failures come back in the result; a non-nil error is a transient
// storage fault and the whole call is safe to retry. Callers must not retry
// on AlreadyCancelled: the first call did the work.
func (s *Service) Cancel(ctx context.Context, sessionID, requesterID, reason string) (CancelResult, error) {
	if requesterID == "" {
		return CancelResult{Failure: policy.FailureUnauthorized}, nil
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return CancelResult{Failure: policy.FailureNotFound}, nil
		}
		return CancelResult{}, err
	}

	now := time.Now().UTC()
	decision := policy.Decide(sess, requesterID, now)
	if !decision.Allowed {
		return CancelResult{
			Failure:        decision.Failure,
			HoursRemaining: decision.HoursRemaining,
		}, nil
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = policy.DefaultCancelReason
	}

	payload, err := json.Marshal(map[string]any{
		"session_id":    sess.ID,
		"client_id":     sess.ClientID,
		"consultant_id": sess.ConsultantID,
		"scheduled_at":  sess.ScheduledAt.UTC().Format(time.RFC3339),
		"cancelled_at":  now.Format(time.RFC3339),
		"cancelled_by":  requesterID,
		"reason":        reason,
	})
	if err != nil {
		return CancelResult{}, err
	}

	err = s.store.CancelScheduled(ctx, storage.CancelUpdate{
		SessionID:   sess.ID,
		CancelledBy: requesterID,
		Reason:      reason,
		CancelledAt: now,
		History: history.Entry{
			SessionID:   sess.ID,
			Action:      history.ActionCancelled,
			ActorID:     requesterID,
			Reason:      reason,
			ScheduledAt: sess.ScheduledAt,
		},
		Event: outbox.Event{
			AggregateType: "session",
			AggregateID:   sess.ID,
			EventType:     "sessions.session.cancelled.v1",
			Payload:       payload,
		},
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotCancellable) {
			// Concurrent cancellation won the race; report it as already done.
			return CancelResult{Failure: policy.FailureAlreadyCancelled}, nil
		}
		if errors.Is(err, storage.ErrNotFound) {
			return CancelResult{Failure: policy.FailureNotFound}, nil
		}
		return CancelResult{}, err
	}

	s.logger.Info("session cancelled", "session_id", sess.ID, "cancelled_by", requesterID)
	return CancelResult{
		OK:          true,
		SessionID:   sess.ID,
		CancelledAt: now,
		Refunded:    false,
	}, nil
}
