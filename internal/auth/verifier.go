// Package auth はOIDC発行者が署名したBearerトークンを検証する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/hitoshi/jobtrail/internal/model"
)

// ErrInvalidToken はトークンが不正または期限切れであることを表す。
var ErrInvalidToken = errors.New("トークンが無効です")

// VerifierConfig はトークン検証の設定。
type VerifierConfig struct {
	// IssuerURL はOIDC発行者のURL。ディスカバリ文書のissuerと一致する必要がある。
	IssuerURL string
	// Audience はトークンのaudクレームに期待する値。空の場合はaudを検証しない。
	Audience string
	// HTTPClient はディスカバリと公開鍵の取得に使用する。nilの場合は10秒タイムアウトのクライアントを使う。
	HTTPClient *http.Client
}

// Verifier はBearerトークンを検証し、IdPのユーザー情報を取り出す。
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// identityClaims はトークンから読み取るクレーム。
type identityClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewVerifier はディスカバリ文書を取得してVerifierを生成する。
// ctxは公開鍵の再取得にも使われるため、キャンセルされない長寿命のものを渡す。
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	issuer := strings.TrimSuffix(cfg.IssuerURL, "/")
	if issuer == "" {
		return nil, errors.New("issuer URL is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	// go-oidcはoauth2.HTTPClientキーのクライアントでディスカバリと鍵の取得を行う
	provider, err := oidc.NewProvider(context.WithValue(ctx, oauth2.HTTPClient, client), issuer)
	if err != nil {
		return nil, fmt.Errorf("OIDCディスカバリに失敗しました: %w", err)
	}

	return &Verifier{verifier: provider.Verifier(oidcConfig(cfg.Audience))}, nil
}

// NewStaticVerifier は固定の鍵セットでVerifierを生成する。ディスカバリを行わない。
func NewStaticVerifier(issuer, audience string, keySet oidc.KeySet) *Verifier {
	return &Verifier{
		verifier: oidc.NewVerifier(strings.TrimSuffix(issuer, "/"), keySet, oidcConfig(audience)),
	}
}

func oidcConfig(audience string) *oidc.Config {
	if audience == "" {
		return &oidc.Config{SkipClientIDCheck: true}
	}
	return &oidc.Config{ClientID: audience}
}

// Verify はトークンの署名・発行者・有効期限・audを検証し、ユーザー情報を返す。
func (v *Verifier) Verify(ctx context.Context, rawToken string) (model.Identity, error) {
	if rawToken == "" {
		return model.Identity{}, ErrInvalidToken
	}

	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if token.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: subがありません", ErrInvalidToken)
	}

	var claims identityClaims
	if err := token.Claims(&claims); err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return model.Identity{
		UID:   token.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}
