package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobtrail/internal/model"
)

// mockTokenVerifier はTokenVerifierのモック。
type mockTokenVerifier struct {
	verifyFn func(ctx context.Context, raw string) (model.Identity, error)
	calls    int
}

func (m *mockTokenVerifier) Verify(ctx context.Context, raw string) (model.Identity, error) {
	m.calls++
	if m.verifyFn != nil {
		return m.verifyFn(ctx, raw)
	}
	return model.Identity{}, errors.New("not configured")
}

func validVerifier() *mockTokenVerifier {
	return &mockTokenVerifier{
		verifyFn: func(ctx context.Context, raw string) (model.Identity, error) {
			if raw == "valid-token" {
				return model.Identity{UID: "user_2abc", Email: "alice@example.com", Name: "Alice"}, nil
			}
			return model.Identity{}, errors.New("invalid signature")
		},
	}
}

func TestAuthMiddleware_ValidToken_InjectsIdentity(t *testing.T) {
	verifier := validVerifier()

	var got model.Identity
	handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.UID != "user_2abc" || got.Email != "alice@example.com" || got.Name != "Alice" {
		t.Errorf("identity = %+v", got)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name          string
		header        string
		wantVerifyHit bool
	}{
		{"no header", "", false},
		{"basic scheme", "Basic dXNlcjpwYXNz", false},
		{"bearer without token", "Bearer ", false},
		{"invalid token", "Bearer forged", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := validVerifier()
			handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			challenge := w.Header().Get("WWW-Authenticate")
			if !strings.HasPrefix(challenge, `Bearer realm="jobtrail"`) {
				t.Errorf("WWW-Authenticate = %q", challenge)
			}
			// 提示されたトークンが検証で拒否された場合のみinvalid_tokenを返す
			if strings.Contains(challenge, "invalid_token") != tt.wantVerifyHit {
				t.Errorf("WWW-Authenticate = %q, verifier hit = %v", challenge, tt.wantVerifyHit)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
			if (verifier.calls > 0) != tt.wantVerifyHit {
				t.Errorf("verifier calls = %d", verifier.calls)
			}
		})
	}
}

func TestAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	handler := NewAuthMiddleware(validVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", "bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestUserIDFromContext(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}

	uid, err := UserIDFromContext(ContextWithUserID(context.Background(), "user_1"))
	if err != nil || uid != "user_1" {
		t.Errorf("uid = %q, err = %v", uid, err)
	}

	if _, ok := IdentityFromContext(ContextWithIdentity(context.Background(), model.Identity{})); ok {
		t.Error("identity without uid should not be returned")
	}
}

// TestAuthChain_PublicAndProtectedRoutes は認証ミドルウェアをchiのグループに適用した構成を検証する。
func TestAuthChain_PublicAndProtectedRoutes(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(NewCORSMiddleware("http://localhost:3000"))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(NewAuthMiddleware(validVerifier()))
		r.Use(rl.GeneralMiddleware())
		r.Get("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
			uid, _ := UserIDFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"uid": uid})
		})
	})

	t.Run("public route without token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("protected route without token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("protected route with token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if body["uid"] != "user_2abc" {
			t.Errorf("uid = %q", body["uid"])
		}
	})

	t.Run("preflight skips auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/users/me", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", w.Code)
		}
	})
}
