// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/jobtrail/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに検証済みのIdPユーザー情報を格納するためのキー。
var identityContextKey = contextKey("identity")

// TokenVerifier はBearerトークンを検証してIdPのユーザー情報を返す。
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (model.Identity, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// ユーザー情報をリクエストコンテキストに注入するミドルウェアを返す。
// トークンが無い、または検証に失敗した場合はハンドラーを呼ばずに401を返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				WriteUnauthorized(w, false)
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				slog.Warn("トークンの検証に失敗しました",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteUnauthorized(w, true)
				return
			}

			setRequestUID(r.Context(), identity.UID)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。スキーム名の大文字小文字は区別しない。
func bearerToken(r *http.Request) string {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// IdentityFromContext はリクエストコンテキストからIdPのユーザー情報を取得する。
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	if !ok || identity.UID == "" {
		return model.Identity{}, false
	}
	return identity, true
}

// UserIDFromContext はリクエストコンテキストからIdPのsubject識別子を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return "", errors.New("user ID not found in context")
	}
	return identity.UID, nil
}

// ContextWithIdentity はコンテキストにIdPのユーザー情報を注入する。
func ContextWithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// ContextWithUserID はsubject識別子のみを持つユーザー情報をコンテキストに注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, uid string) context.Context {
	return ContextWithIdentity(ctx, model.Identity{UID: uid})
}
