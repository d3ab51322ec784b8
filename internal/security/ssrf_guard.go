// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// maxURLLength は受け付けるURLの最大長。
const maxURLLength = 2048

// ErrResponseTooLarge はレスポンスボディが上限を超えたことを表す。
var ErrResponseTooLarge = errors.New("response body too large")

// SSRFGuardService はSSRF防止機能のインターフェースを定義する。
// 求人フィードの取得時と手動登録求人のリンク検証で使用される。
type SSRFGuardService interface {
	// NewSafeClient はSSRF防止とレスポンスサイズ上限付きのHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client

	// ValidateURL はDNS解決を伴わない静的な検証を行い、危険なURLの場合はエラーを返す。
	ValidateURL(rawURL string) error
}

// allowedSchemes はSSRF防止で許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は外部URLとして受け付けないアドレス範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),       // カレントネットワーク
	netip.MustParsePrefix("10.0.0.0/8"),      // RFC 1918
	netip.MustParsePrefix("100.64.0.0/10"),   // CGNAT (RFC 6598)
	netip.MustParsePrefix("127.0.0.0/8"),     // ループバック
	netip.MustParsePrefix("169.254.0.0/16"),  // リンクローカル（メタデータIPを含む）
	netip.MustParsePrefix("172.16.0.0/12"),   // RFC 1918
	netip.MustParsePrefix("192.0.0.0/24"),    // IETFプロトコル割り当て
	netip.MustParsePrefix("192.168.0.0/16"),  // RFC 1918
	netip.MustParsePrefix("198.18.0.0/15"),   // ベンチマーク用
	netip.MustParsePrefix("224.0.0.0/4"),     // マルチキャスト
	netip.MustParsePrefix("240.0.0.0/4"),     // 予約済み
	netip.MustParsePrefix("::/128"),          // 未指定
	netip.MustParsePrefix("::1/128"),         // IPv6ループバック
	netip.MustParsePrefix("fc00::/7"),        // IPv6ユニークローカル
	netip.MustParsePrefix("fe80::/10"),       // IPv6リンクローカル
	netip.MustParsePrefix("ff00::/8"),        // IPv6マルチキャスト
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
	"metadata.google.internal",
}

// blockedHostSuffixes はブロック対象のホスト名サフィックス。
var blockedHostSuffixes = []string{
	".localhost",
	".local",
	".internal",
}

// ssrfGuard はSSRFGuardServiceの実装。
type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディングにも対応する。接続先ポートは80と443に限定する。
// maxResponseSizeが正の場合、ボディがそれを超えた時点で読み取りはErrResponseTooLargeを返す。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	client := safeurl.Client(config).Client
	if maxResponseSize > 0 {
		client.Transport = &limitTransport{base: client.Transport, max: maxResponseSize}
	}
	return client
}

// ValidateURL はURLの安全性を事前に検証する。
// 求人フィードへのリクエスト前と、手動登録求人のリンク保存前に使用する。
// DNS再バインディングはNewSafeClientのDialer検証で防止される。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("empty URL")
	}
	if len(rawURL) > maxURLLength {
		return fmt.Errorf("URL too long: %d bytes (max %d)", len(rawURL), maxURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}
	// 認証情報を埋め込んだリンクは保存しない
	if parsed.User != nil {
		return errors.New("credentials in URL are not allowed")
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedAddr はアドレスがブロック対象の範囲に含まれるかを検証する。
// IPv4射影IPv6アドレス（::ffff:127.0.0.1 等）はIPv4として判定する。
func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap().WithZone("")
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// limitTransport はレスポンスボディの読み取り量を制限するRoundTripper。
type limitTransport struct {
	base http.RoundTripper
	max  int64
}

func (t *limitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength > t.max {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: Content-Length %d exceeds %d", ErrResponseTooLarge, resp.ContentLength, t.max)
	}
	resp.Body = &limitedBody{rc: resp.Body, remaining: t.max}
	return resp, nil
}

// limitedBody は上限を1バイトでも超えた時点でErrResponseTooLargeを返す。
type limitedBody struct {
	rc        io.ReadCloser
	remaining int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining < 0 {
		return 0, ErrResponseTooLarge
	}
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return n + int(b.remaining), ErrResponseTooLarge
	}
	return n, err
}

func (b *limitedBody) Close() error { return b.rc.Close() }
