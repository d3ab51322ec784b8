package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はエクスポート対象のHTMLをサニタイズするインターフェース。
// カバーレターや履歴書の本文をドキュメント化する前に使用する。
type ContentSanitizerService interface {
	// Sanitize は文書構造に必要なタグのみを残した安全なHTMLを返す。
	// script, iframe, styleタグおよびon*イベント属性は除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフで、複数リクエストから共有できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewDocumentSanitizer は文書用ポリシーのContentSanitizerServiceを生成する。
// ポリシーの内容:
//   - ブロック要素: p, h1-h6, ul, ol, li, blockquote, pre, hr, div, section, table系
//   - インライン要素: b, strong, i, em, u, br, span, code, sub, sup
//   - aタグ: http(s)とmailtoのhrefのみ許可
func NewDocumentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote", "pre", "hr",
		"div", "section", "header", "footer",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowElements(
		"b", "strong", "i", "em", "u", "br", "span", "code", "sub", "sup",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
