package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/grabvid/grabvid/internal/auth"
	"github.com/grabvid/grabvid/internal/repository"
)

func newVerifier(t *testing.T) *auth.SessionVerifier {
	t.Helper()
	return auth.NewSessionVerifier("session-test-secret", time.Now)
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(UserUUID(r)))
	})
}

func TestSessionAuth_ValidBearer(t *testing.T) {
	verifier := newVerifier(t)
	tok, err := verifier.MintSession("user-123", time.Hour)
	if err != nil {
		t.Fatalf("MintSession: %v", err)
	}

	handler := SessionAuth(verifier)(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/api/credits/balance", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "user-123" {
		t.Errorf("user uuid = %q, want %q", w.Body.String(), "user-123")
	}
}

func TestSessionAuth_SessionCookie(t *testing.T) {
	verifier := newVerifier(t)
	tok, err := verifier.MintSession("user-456", time.Hour)
	if err != nil {
		t.Fatalf("MintSession: %v", err)
	}

	handler := SessionAuth(verifier)(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/api/credits/balance", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: tok})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Body.String() != "user-456" {
		t.Errorf("user uuid = %q, want %q", w.Body.String(), "user-456")
	}
}

func TestSessionAuth_InvalidTokenPassesAnonymous(t *testing.T) {
	verifier := newVerifier(t)
	handler := SessionAuth(verifier)(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/api/twitter", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d (anonymous pass-through)", w.Code, http.StatusOK)
	}
	if w.Body.String() != "" {
		t.Errorf("user uuid = %q, want anonymous", w.Body.String())
	}
}

func TestRequireUser_RejectsAnonymous(t *testing.T) {
	handler := RequireUser(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/api/credits/balance", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRequireUser_AllowsAuthenticated(t *testing.T) {
	verifier := newVerifier(t)
	tok, err := verifier.MintSession("user-789", time.Hour)
	if err != nil {
		t.Fatalf("MintSession: %v", err)
	}

	handler := SessionAuth(verifier)(RequireUser(echoUser()))

	req := httptest.NewRequest(http.MethodGet, "/api/credits/balance", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAdminKeyAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		presented  string
		header     string
		wantStatus int
	}{
		{"valid X-API-Key", "admin-secret", "admin-secret", "X-API-Key", http.StatusOK},
		{"valid bearer", "admin-secret", "admin-secret", "Authorization", http.StatusOK},
		{"wrong key", "admin-secret", "nope", "X-API-Key", http.StatusUnauthorized},
		{"missing key", "admin-secret", "", "", http.StatusUnauthorized},
		{"disabled when unconfigured", "", "anything", "X-API-Key", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AdminKeyAuth(tt.configured)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/admin/credits/grant", nil)
			switch tt.header {
			case "X-API-Key":
				req.Header.Set("X-API-Key", tt.presented)
			case "Authorization":
				req.Header.Set("Authorization", "Bearer "+tt.presented)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAPIKeyAuth_ValidKeySetsPremium(t *testing.T) {
	db, err := repository.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	keys := auth.NewAPIKeyService(repository.NewSQLiteAPIKeyRepository(db), time.Now)
	plaintext, _, err := keys.Provision(context.Background(), "user-premium", "ci", true)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	handler := APIKeyAuth(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserUUID(r) != "user-premium" {
			t.Errorf("user uuid = %q, want %q", UserUUID(r), "user-premium")
		}
		if !IsPremium(r) {
			t.Error("expected premium flag in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/twitter", nil)
	req.Header.Set("Authorization", "Bearer "+plaintext)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAPIKeyAuth_Rejections(t *testing.T) {
	db, err := repository.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	keys := auth.NewAPIKeyService(repository.NewSQLiteAPIKeyRepository(db), time.Now)
	handler := APIKeyAuth(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		bearer string
	}{
		{"missing key", ""},
		{"unknown key", "sk_deadbeef_00000000000000000000000000000000"},
		{"malformed key", "not-an-api-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/twitter", nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}
