package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareValidToken(t *testing.T) {
	mgr := NewJWTManager("test-secret")
	token, _ := mgr.GenerateAccessToken("user-42")

	var capturedUserID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(mgr)(inner)

	for _, target := range []string{"/test", "/test?token=" + token} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if target == "/test" {
			req.Header.Set("Authorization", "bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", target, rec.Code)
		}
		if capturedUserID != "user-42" {
			t.Errorf("%s: expected user_id=user-42, got %s", target, capturedUserID)
		}
	}
}

func TestMiddlewareRejects(t *testing.T) {
	mgr := NewJWTManager("test-secret")
	refresh, _ := mgr.GenerateRefreshToken("user-1")
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
	handler := Middleware(mgr)(inner)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"no bearer prefix", "Token abc123"},
		{"bearer only", "Bearer"},
		{"empty value", "Bearer "},
		{"invalid token", "Bearer invalid.jwt.token"},
		{"refresh token", "Bearer " + refresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestUserIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if id := UserIDFromContext(req.Context()); id != "" {
		t.Errorf("expected empty user ID without auth, got %s", id)
	}
	if id := UserIDFromContext(WithUserID(req.Context(), "u1")); id != "u1" {
		t.Errorf("got %q, want u1", id)
	}
}
