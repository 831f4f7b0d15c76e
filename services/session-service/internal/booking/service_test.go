package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/coachdesk/coachdesk/services/session-service/internal/history"
	"github.com/coachdesk/coachdesk/services/session-service/internal/model"
	"github.com/coachdesk/coachdesk/services/session-service/internal/outbox"
	"github.com/coachdesk/coachdesk/services/session-service/internal/policy"
	"github.com/coachdesk/coachdesk/services/session-service/internal/storage"
)

// fakeStore applies CancelUpdate with the same all-or-nothing semantics the
// Postgres repository provides: when the audit append is made to fail, the
// session state must not change either.
type fakeStore struct {
	sessions         map[string]model.Session
	history          []history.Entry
	events           []outbox.Event
	nextID           int
	failWrites       error
	conflictOnCancel bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]model.Session{}, nextID: 1}
}

func (f *fakeStore) GetSession(_ context.Context, id string) (model.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return model.Session{}, storage.ErrNotFound
	}
	return sess, nil
}

func (f *fakeStore) CreateSession(_ context.Context, sess *model.Session, entry history.Entry, evt outbox.Event) (string, error) {
	if f.failWrites != nil {
		return "", f.failWrites
	}
	id := fmt.Sprintf("sess-%d", f.nextID)
	f.nextID++
	stored := *sess
	stored.ID = id
	f.sessions[id] = stored
	entry.SessionID = id
	f.history = append(f.history, entry)
	evt.AggregateID = id
	f.events = append(f.events, evt)
	return id, nil
}

func (f *fakeStore) CancelScheduled(_ context.Context, upd storage.CancelUpdate) error {
	if f.failWrites != nil {
		return f.failWrites
	}
	if f.conflictOnCancel {
		return storage.ErrNotCancellable
	}
	sess, ok := f.sessions[upd.SessionID]
	if !ok {
		return storage.ErrNotFound
	}
	if sess.Status != model.StatusScheduled {
		return storage.ErrNotCancellable
	}
	cancelledAt := upd.CancelledAt
	sess.Status = model.StatusCancelled
	sess.CancelledAt = &cancelledAt
	sess.CancelledBy = upd.CancelledBy
	sess.CancelReason = upd.Reason
	f.sessions[upd.SessionID] = sess
	f.history = append(f.history, upd.History)
	f.events = append(f.events, upd.Event)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func seedSession(f *fakeStore, scheduledAt time.Time) string {
	id := "sess-seed"
	f.sessions[id] = model.Session{
		ID:           id,
		ClientID:     "client-1",
		ConsultantID: "consultant-1",
		ScheduledAt:  scheduledAt,
		Status:       model.StatusScheduled,
	}
	return id
}

func TestCancel_Success(t *testing.T) {
	store := newFakeStore()
	id := seedSession(store, time.Now().UTC().Add(72*time.Hour))
	svc := NewService(store, testLogger())

	res, err := svc.Cancel(context.Background(), id, "client-1", "schedule conflict")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Refunded {
		t.Fatal("cancellations never refund")
	}

	sess := store.sessions[id]
	if sess.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", sess.Status)
	}
	if sess.CancelledAt == nil || sess.CancelledBy != "client-1" || sess.CancelReason != "schedule conflict" {
		t.Fatalf("cancellation record incomplete: %+v", sess)
	}
	if len(store.history) != 1 || store.history[0].Action != history.ActionCancelled {
		t.Fatalf("expected one cancelled history entry, got %+v", store.history)
	}
	if len(store.events) != 1 || store.events[0].EventType != "sessions.session.cancelled.v1" {
		t.Fatalf("expected one cancellation event, got %+v", store.events)
	}
}

func TestCancel_DefaultsReason(t *testing.T) {
	store := newFakeStore()
	id := seedSession(store, time.Now().UTC().Add(72*time.Hour))
	svc := NewService(store, testLogger())

	res, err := svc.Cancel(context.Background(), id, "consultant-1", "  ")
	if err != nil || !res.OK {
		t.Fatalf("Cancel failed: res=%+v err=%v", res, err)
	}
	if store.sessions[id].CancelReason != policy.DefaultCancelReason {
		t.Fatalf("expected default reason, got %q", store.sessions[id].CancelReason)
	}
}

func TestCancel_SecondCallReportsAlreadyCancelled(t *testing.T) {
	store := newFakeStore()
	id := seedSession(store, time.Now().UTC().Add(72*time.Hour))
	svc := NewService(store, testLogger())

	first, err := svc.Cancel(context.Background(), id, "client-1", "")
	if err != nil || !first.OK {
		t.Fatalf("first cancel failed: res=%+v err=%v", first, err)
	}
	after := store.sessions[id]

	second, err := svc.Cancel(context.Background(), id, "client-1", "")
	if err != nil {
		t.Fatalf("second cancel errored: %v", err)
	}
	if second.OK || second.Failure != policy.FailureAlreadyCancelled {
		t.Fatalf("expected already_cancelled, got %+v", second)
	}
	if store.sessions[id] != after {
		t.Fatal("second cancel must not change state")
	}
	if len(store.history) != 1 {
		t.Fatalf("expected exactly one history entry, got %d", len(store.history))
	}
}

func TestCancel_ConcurrentLoserMapsToAlreadyCancelled(t *testing.T) {
	store := newFakeStore()
	id := seedSession(store, time.Now().UTC().Add(72*time.Hour))
	// The read sees a scheduled session, but the guarded update loses the
	// race to the other party and reports a conflict.
	store.conflictOnCancel = true
	svc := NewService(store, testLogger())

	res, err := svc.Cancel(context.Background(), id, "client-1", "")
	if err != nil {
		t.Fatalf("Cancel errored: %v", err)
	}
	if res.Failure != policy.FailureAlreadyCancelled {
		t.Fatalf("expected already_cancelled for race loser, got %+v", res)
	}
}

func TestCancel_Forbidden(t *testing.T) {
	store := newFakeStore()
	id := seedSession(store, time.Now().UTC().Add(72*time.Hour))
	svc := NewService(store, testLogger())

	res, err := svc.Cancel(context.Background(), id, "intruder", "")
	if err != nil {
		t.Fatalf("Cancel errored: %v", err)
	}
	if res.Failure != policy.FailureForbidden {
		t.Fatalf("expected forbidden, got %+v", res)
	}
	if store.sessions[id].Status != model.StatusScheduled {
		t.Fatal("forbidden cancel must not change state")
	}
}

func TestCancel_TooLateKeepsSession(t *testing.T) {
	store := newFakeStore()
	id := seedSession(store, time.Now().UTC().Add(5*time.Hour+24*time.Minute))
	svc := NewService(store, testLogger())

	res, err := svc.Cancel(context.Background(), id, "client-1", "")
	if err != nil {
		t.Fatalf("Cancel errored: %v", err)
	}
	if res.Failure != policy.FailureTooLateToCancel {
		t.Fatalf("expected too_late_to_cancel, got %+v", res)
	}
	if res.HoursRemaining != 5 {
		t.Fatalf("expected 5 hours remaining, got %d", res.HoursRemaining)
	}
	if store.sessions[id].Status != model.StatusScheduled {
		t.Fatal("too-late cancel must not change state")
	}
}

func TestCancel_NotFound(t *testing.T) {
	svc := NewService(newFakeStore(), testLogger())
	res, err := svc.Cancel(context.Background(), "missing", "client-1", "")
	if err != nil {
		t.Fatalf("Cancel errored: %v", err)
	}
	if res.Failure != policy.FailureNotFound {
		t.Fatalf("expected not_found, got %+v", res)
	}
}

func TestCancel_EmptyRequesterUnauthorized(t *testing.T) {
	store := newFakeStore()
	id := seedSession(store, time.Now().UTC().Add(72*time.Hour))
	svc := NewService(store, testLogger())

	res, err := svc.Cancel(context.Background(), id, "", "")
	if err != nil {
		t.Fatalf("Cancel errored: %v", err)
	}
	if res.Failure != policy.FailureUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", res)
	}
}

func TestCancel_WriteFailureIsNotSuccess(t *testing.T) {
	store := newFakeStore()
	id := seedSession(store, time.Now().UTC().Add(72*time.Hour))
	store.failWrites = errors.New("history insert failed")
	svc := NewService(store, testLogger())

	res, err := svc.Cancel(context.Background(), id, "client-1", "")
	if err == nil {
		t.Fatal("expected a transient error when the atomic write fails")
	}
	if res.OK {
		t.Fatal("failed write must not be reported as success")
	}
	if store.sessions[id].Status != model.StatusScheduled {
		t.Fatal("failed write must leave the session scheduled")
	}
	if len(store.history) != 0 || len(store.events) != 0 {
		t.Fatal("failed write must not leave partial audit records")
	}
}

func TestBook_CreatesHistoryAndEvent(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testLogger())

	id, err := svc.Book(context.Background(), BookRequest{
		ClientID:     "client-1",
		ConsultantID: "consultant-1",
		ScheduledAt:  time.Now().UTC().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if store.sessions[id].DurationMinutes != 60 {
		t.Fatalf("expected default duration 60, got %d", store.sessions[id].DurationMinutes)
	}
	if len(store.history) != 1 || store.history[0].Action != history.ActionBooked {
		t.Fatalf("expected one booked history entry, got %+v", store.history)
	}
	if len(store.events) != 1 || store.events[0].EventType != "sessions.session.booked.v1" {
		t.Fatalf("expected one booked event, got %+v", store.events)
	}
}

func TestBook_RejectsInvalidRequests(t *testing.T) {
	svc := NewService(newFakeStore(), testLogger())
	future := time.Now().UTC().Add(48 * time.Hour)

	cases := []BookRequest{
		{ClientID: "", ConsultantID: "c", ScheduledAt: future},
		{ClientID: "a", ConsultantID: "a", ScheduledAt: future},
		{ClientID: "a", ConsultantID: "c", ScheduledAt: time.Now().UTC().Add(-time.Hour)},
	}
	for i, req := range cases {
		if _, err := svc.Book(context.Background(), req); !errors.Is(err, ErrInvalidBooking) {
			t.Fatalf("case %d: expected ErrInvalidBooking, got %v", i, err)
		}
	}
}
