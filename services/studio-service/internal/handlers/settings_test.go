package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coachdesk/coachdesk/libs/auth"
	"github.com/coachdesk/coachdesk/services/studio-service/internal/settings"
)

const testSecret = "studio-test-secret"

type memStore struct {
	values map[string]string
	setErr error
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

func newTestHandler(store settings.Store) (*SettingsHandler, *settings.Cache) {
	logger := slog.New(slog.DiscardHandler)
	cache := settings.NewCache(store, settings.NewBus(), logger)
	cache.Load(context.Background())
	return NewSettingsHandler(cache, testSecret, logger), cache
}

func signToken(t *testing.T, role string) string {
	t.Helper()
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub: "user-1", Role: role,
		Iat: now.Unix(), Exp: now.Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func putContact(h *SettingsHandler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/contact", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.AdminContact(rec, req)
	return rec
}

func TestPublicContactServesCurrentSettings(t *testing.T) {
	h, _ := newTestHandler(newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/contact", nil)
	rec := httptest.NewRecorder()
	h.PublicContact(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got settings.ContactSettings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if got != settings.Defaults() {
		t.Fatalf("body = %+v, want defaults", got)
	}
}

func TestAdminContactRequiresAuth(t *testing.T) {
	h, _ := newTestHandler(newMemStore())

	if rec := putContact(h, "", `{"phone":"+1"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without token", rec.Code)
	}
	if rec := putContact(h, "not-a-jwt", `{"phone":"+1"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for invalid token", rec.Code)
	}
}

func TestAdminContactRejectsClientRole(t *testing.T) {
	h, cache := newTestHandler(newMemStore())
	before := cache.Current()

	rec := putContact(h, signToken(t, "client"), `{"phone":"+1 (555) 222-2222"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for client role", rec.Code)
	}
	if cache.Current() != before {
		t.Fatal("rejected update must not change settings")
	}
}

func TestAdminContactAppliesPatch(t *testing.T) {
	for _, role := range []string{"admin", "consultant"} {
		h, cache := newTestHandler(newMemStore())

		rec := putContact(h, signToken(t, role), `{"email":"new@coachdesk.example","working_hours":{"sunday":"closed"}}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body = %s", role, rec.Code, rec.Body.String())
		}

		got := cache.Current()
		if got.Email != "new@coachdesk.example" || got.WorkingHours.Sunday != "closed" {
			t.Fatalf("%s: current = %+v, patch not applied", role, got)
		}
		if got.Phone != settings.Defaults().Phone {
			t.Fatalf("%s: phone = %q, unpatched field must be unchanged", role, got.Phone)
		}
	}
}

func TestAdminContactFailedPersistReturns503(t *testing.T) {
	store := newMemStore()
	h, cache := newTestHandler(store)
	before := cache.Current()

	store.setErr = errors.New("write timeout")
	rec := putContact(h, signToken(t, "admin"), `{"phone":"+1 (555) 333-3333"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when the store write fails", rec.Code)
	}
	if cache.Current() != before {
		t.Fatal("failed persist must leave settings unchanged")
	}
}

func TestAdminContactRejectsBadJSON(t *testing.T) {
	h, _ := newTestHandler(newMemStore())
	if rec := putContact(h, signToken(t, "admin"), "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
