package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coachdesk/coachdesk/libs/auth"
	"github.com/coachdesk/coachdesk/services/identity-service/internal/storage"
)

func TestPasswordHashing(t *testing.T) {
	password := "pass123"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestIssueJWTCarriesUserIdentity(t *testing.T) {
	h := NewIdentityHandler(nil, nil, "test-secret", time.Hour, nil)
	user := storage.User{
		ID:       "user-1",
		FullName: "Dana Reyes",
		Role:     "consultant",
	}

	token, err := h.issueJWT(user)
	if err != nil {
		t.Fatalf("issueJWT failed: %v", err)
	}

	claims, err := auth.ParseAndVerifyHS256(token, "test-secret")
	if err != nil {
		t.Fatalf("token should verify: %v", err)
	}
	if claims.Sub != "user-1" || claims.Role != "consultant" || claims.Name != "Dana Reyes" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Exp <= claims.Iat {
		t.Fatal("token must expire after issuance")
	}

	if _, err := auth.ParseAndVerifyHS256(token, "other-secret"); err == nil {
		t.Fatal("token must not verify under a different secret")
	}
}

func TestAuditRequiresAdminRole(t *testing.T) {
	h := NewIdentityHandler(nil, nil, "test-secret", time.Hour, nil)

	getAudit := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.Audit(rec, req)
		return rec
	}

	if rec := getAudit(""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without token", rec.Code)
	}

	now := time.Now()
	clientToken, err := auth.SignHS256(auth.Claims{
		Sub: "user-1", Role: "client",
		Iat: now.Unix(), Exp: now.Add(time.Hour).Unix(),
	}, "test-secret")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if rec := getAudit(clientToken); rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for non-admin", rec.Code)
	}
}
