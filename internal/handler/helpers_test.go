package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobtrail/internal/middleware"
	"github.com/hitoshi/jobtrail/internal/model"
)

// withUserID はテスト用にsubject識別子をコンテキストに注入するヘルパー。
func withUserID(r *http.Request, uid string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), uid)
	return r.WithContext(ctx)
}

// withIdentity はテスト用に検証済みのユーザー情報をコンテキストに注入するヘルパー。
func withIdentity(r *http.Request, identity model.Identity) *http.Request {
	ctx := middleware.ContextWithIdentity(r.Context(), identity)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeResponse はレスポンスボディをvにデコードするヘルパー。
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
