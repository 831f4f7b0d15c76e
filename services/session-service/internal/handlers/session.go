package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coachdesk/coachdesk/libs/auth"
	"github.com/coachdesk/coachdesk/services/session-service/internal/booking"
	"github.com/coachdesk/coachdesk/services/session-service/internal/history"
	"github.com/coachdesk/coachdesk/services/session-service/internal/identity"
	"github.com/coachdesk/coachdesk/services/session-service/internal/policy"
	"github.com/coachdesk/coachdesk/services/session-service/internal/storage"
)

type SessionHandler struct {
	svc      *booking.Service
	repo     *storage.SessionRepository
	hist     *history.Repository
	verifier identity.Verifier
	logger   *slog.Logger
}

func NewSessionHandler(svc *booking.Service, repo *storage.SessionRepository, hist *history.Repository, verifier identity.Verifier, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, repo: repo, hist: hist, verifier: verifier, logger: logger}
}

type bookRequest struct {
	ConsultantID    string `json:"consultant_id"`
	ScheduledAt     string `json:"scheduled_at"`
	DurationMinutes int    `json:"duration_minutes"`
}

type cancelRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

type cancelResponse struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
	Refunded    bool   `json:"refunded"`
}

type sessionItem struct {
	SessionID       string `json:"session_id"`
	ClientID        string `json:"client_id"`
	ConsultantID    string `json:"consultant_id"`
	ScheduledAt     string `json:"scheduled_at"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
	CancelReason    string `json:"cancellation_reason,omitempty"`
}

type historyItem struct {
	Action      string `json:"action"`
	ActorID     string `json:"actor_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ScheduledAt string `json:"scheduled_at"`
	CreatedAt   string `json:"created_at"`
}

func (h *SessionHandler) principal(r *http.Request) (identity.Principal, bool) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return identity.Principal{}, false
	}
	p, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		return identity.Principal{}, false
	}
	return p, true
}

func (h *SessionHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := h.principal(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ConsultantID = strings.TrimSpace(req.ConsultantID)
	if req.ConsultantID == "" {
		http.Error(w, "consultant_id required", http.StatusBadRequest)
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		http.Error(w, "invalid scheduled_at", http.StatusBadRequest)
		return
	}

	id, err := h.svc.Book(r.Context(), booking.BookRequest{
		ClientID:        p.ID,
		ConsultantID:    req.ConsultantID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		if errors.Is(err, booking.ErrInvalidBooking) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("booking failed", "err", err)
		http.Error(w, "failed to book session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"session_id": id})
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := h.principal(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Cancel(r.Context(), req.SessionID, p.ID, req.Reason)
	if err != nil {
		h.logger.Error("cancellation failed", "err", err, "session_id", req.SessionID)
		http.Error(w, "failed to cancel session, please retry", http.StatusInternalServerError)
		return
	}
	if !res.OK {
		h.writeCancelFailure(w, res)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(cancelResponse{
		SessionID:   res.SessionID,
		Status:      "cancelled",
		CancelledAt: res.CancelledAt.UTC().Format(time.RFC3339),
		Refunded:    res.Refunded,
	})
}

func (h *SessionHandler) writeCancelFailure(w http.ResponseWriter, res booking.CancelResult) {
	switch res.Failure {
	case policy.FailureUnauthorized:
		http.Error(w, "authentication required", http.StatusUnauthorized)
	case policy.FailureNotFound:
		http.Error(w, "session not found", http.StatusNotFound)
	case policy.FailureForbidden:
		http.Error(w, "only the client or the consultant may cancel", http.StatusForbidden)
	case policy.FailureAlreadyCancelled:
		http.Error(w, "session is already cancelled", http.StatusConflict)
	case policy.FailureTooLateToCancel:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":           "sessions cannot be cancelled less than 24 hours before they start",
			"hours_remaining": res.HoursRemaining,
		})
	default:
		http.Error(w, "failed to cancel session", http.StatusInternalServerError)
	}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := h.principal(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	sessions, err := h.repo.ListByParty(r.Context(), p.ID, limit)
	if err != nil {
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}

	items := make([]sessionItem, 0, len(sessions))
	for _, sess := range sessions {
		item := sessionItem{
			SessionID:       sess.ID,
			ClientID:        sess.ClientID,
			ConsultantID:    sess.ConsultantID,
			ScheduledAt:     sess.ScheduledAt.UTC().Format(time.RFC3339),
			DurationMinutes: sess.DurationMinutes,
			Status:          sess.Status,
			CancelReason:    sess.CancelReason,
		}
		if sess.CancelledAt != nil {
			item.CancelledAt = sess.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := h.principal(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}

	sess, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	if p.ID != sess.ClientID && p.ID != sess.ConsultantID {
		http.Error(w, "participants only", http.StatusForbidden)
		return
	}

	entries, err := h.hist.ListBySession(r.Context(), sessionID, 100)
	if err != nil {
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItem{
			Action:      e.Action,
			ActorID:     e.ActorID,
			Reason:      e.Reason,
			ScheduledAt: e.ScheduledAt.UTC().Format(time.RFC3339),
			CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}
