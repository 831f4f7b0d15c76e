package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coachdesk/coachdesk/libs/auth"
	"github.com/coachdesk/coachdesk/services/studio-service/internal/settings"
)

type SettingsHandler struct {
	cache     *settings.Cache
	jwtSecret string
	logger    *slog.Logger
}

func NewSettingsHandler(cache *settings.Cache, jwtSecret string, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{cache: cache, jwtSecret: jwtSecret, logger: logger}
}

// PublicContact serves the current contact settings without auth.
func (h *SettingsHandler) PublicContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.cache.Ready() {
		http.Error(w, "settings not loaded yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.cache.Current())
}

// AdminContact applies a partial settings update. Only admins and
// consultants may change the studio's contact details.
func (h *SettingsHandler) AdminContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := h.authorize(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if claims.Role != "admin" && claims.Role != "consultant" {
		http.Error(w, "admin or consultant role required", http.StatusForbidden)
		return
	}

	var patch settings.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	if !h.cache.Update(r.Context(), patch) {
		h.logger.Error("contact settings update rejected", "actor", claims.Sub)
		http.Error(w, "settings update could not be saved, please retry", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.cache.Current())
}

func (h *SettingsHandler) authorize(r *http.Request) (auth.Claims, bool) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return auth.Claims{}, false
	}
	claims, err := auth.ParseAndVerifyHS256(token, h.jwtSecret)
	if err != nil {
		return auth.Claims{}, false
	}
	return *claims, true
}
