package policy

import (
	"testing"
	"time"

	"github.com/coachdesk/coachdesk/services/session-service/internal/model"
)

func scheduledSession(scheduledAt time.Time) model.Session {
	return model.Session{
		ID:           "sess-1",
		ClientID:     "client-1",
		ConsultantID: "consultant-1",
		ScheduledAt:  scheduledAt,
		Status:       model.StatusScheduled,
	}
}

func TestDecide_AllowsParticipantsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := scheduledSession(now.Add(48 * time.Hour))

	for _, requester := range []string{"client-1", "consultant-1"} {
		d := Decide(sess, requester, now)
		if !d.Allowed {
			t.Fatalf("expected %s to be allowed, got %+v", requester, d)
		}
	}
}

func TestDecide_ExactWindowBoundary(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Exactly 24h out is still cancellable; one second less is not.
	d := Decide(scheduledSession(now.Add(24*time.Hour)), "client-1", now)
	if !d.Allowed {
		t.Fatalf("expected exactly 24h to be allowed, got %+v", d)
	}
	d = Decide(scheduledSession(now.Add(24*time.Hour-time.Second)), "client-1", now)
	if d.Allowed || d.Failure != FailureTooLateToCancel {
		t.Fatalf("expected too_late_to_cancel just inside window, got %+v", d)
	}
}

func TestDecide_TooLateReportsRoundedHours(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		until time.Duration
		hours int
	}{
		{5*time.Hour + 24*time.Minute, 5},  // 5.4h rounds down
		{5*time.Hour + 36*time.Minute, 6},  // 5.6h rounds up
		{23*time.Hour + 36*time.Minute, 24}, // inside window even though it rounds to 24
		{30 * time.Minute, 1},
		{-2 * time.Hour, 0}, // already started: report zero, not a negative count
	}
	for _, c := range cases {
		d := Decide(scheduledSession(now.Add(c.until)), "client-1", now)
		if d.Allowed || d.Failure != FailureTooLateToCancel {
			t.Fatalf("until=%s: expected too_late_to_cancel, got %+v", c.until, d)
		}
		if d.HoursRemaining != c.hours {
			t.Fatalf("until=%s: expected %d hours remaining, got %d", c.until, c.hours, d.HoursRemaining)
		}
	}
}

func TestDecide_ForbiddenForThirdParties(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Timing must not matter: a stranger is rejected before the window check.
	for _, until := range []time.Duration{48 * time.Hour, 2 * time.Hour} {
		d := Decide(scheduledSession(now.Add(until)), "someone-else", now)
		if d.Failure != FailureForbidden {
			t.Fatalf("until=%s: expected forbidden, got %+v", until, d)
		}
	}
}

func TestDecide_AlreadyCancelled(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := scheduledSession(now.Add(48 * time.Hour))
	sess.Status = model.StatusCancelled

	d := Decide(sess, "client-1", now)
	if d.Failure != FailureAlreadyCancelled {
		t.Fatalf("expected already_cancelled, got %+v", d)
	}
}

func TestDecide_UnknownRequester(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	d := Decide(scheduledSession(now.Add(48*time.Hour)), "", now)
	if d.Failure != FailureUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", d)
	}
}
