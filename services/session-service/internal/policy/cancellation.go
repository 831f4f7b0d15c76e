package policy

import (
	"math"
	"time"

	"github.com/coachdesk/coachdesk/services/session-service/internal/model"
)

// CancellationWindow is the minimum notice before a session may be cancelled.
// There is no override path: inside the window the cancellation is refused
// for clients and consultants alike.
const CancellationWindow = 24 * time.Hour

// DefaultCancelReason is recorded when the caller supplies no reason.
const DefaultCancelReason = "cancelled by user"

type Failure string

const (
	FailureNone             Failure = ""
	FailureUnauthorized     Failure = "unauthorized"
	FailureNotFound         Failure = "not_found"
	FailureForbidden        Failure = "forbidden"
	FailureAlreadyCancelled Failure = "already_cancelled"
	FailureTooLateToCancel  Failure = "too_late_to_cancel"
)

// Decision is the outcome of evaluating a cancellation request against a
// loaded session. HoursRemaining is set only for FailureTooLateToCancel so
// the caller can render an exact message.
type Decision struct {
	Allowed        bool
	Failure        Failure
	HoursRemaining int
}

// Decide checks, in order: the requester is known, the requester is a
// participant (client or consultant; nobody else may cancel), the session is
// still scheduled, and the session starts at least CancellationWindow from
// now.
func Decide(sess model.Session, requesterID string, now time.Time) Decision {
	if requesterID == "" {
		return Decision{Failure: FailureUnauthorized}
	}
	if requesterID != sess.ClientID && requesterID != sess.ConsultantID {
		return Decision{Failure: FailureForbidden}
	}
	if sess.Status == model.StatusCancelled {
		return Decision{Failure: FailureAlreadyCancelled}
	}
	until := sess.ScheduledAt.Sub(now)
	if until < CancellationWindow {
		hours := int(math.Round(until.Hours()))
		if hours < 0 {
			hours = 0
		}
		return Decision{Failure: FailureTooLateToCancel, HoursRemaining: hours}
	}
	return Decision{Allowed: true}
}
