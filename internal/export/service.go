// Package export はカバーレターや履歴書のHTMLをPDF・DOCX・Markdownに変換する。
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/hitoshi/jobtrail/internal/metrics"
	"github.com/hitoshi/jobtrail/internal/model"
)

// Format は出力形式を表す。
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "md"
)

// ErrUnsupportedFormat は未対応の出力形式を表す。呼び出し側は何も出力しない。
var ErrUnsupportedFormat = errors.New("未対応の出力形式です")

var contentTypes = map[Format]string{
	FormatPDF:      "application/pdf",
	FormatDOCX:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatMarkdown: "text/markdown; charset=utf-8",
}

// Request はエクスポート要求。HTMLはリクエスト内で受け取り、ストレージを経由しない。
type Request struct {
	Format   string
	FileName string
	HTML     string
}

// Document は生成されたドキュメント。
type Document struct {
	FileName    string
	ContentType string
	Body        []byte
}

// Sanitizer はHTMLを安全な文書用HTMLに変換する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// PDFRenderer はHTMLをPDFに描画する。
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// Service はドキュメントエクスポートのサービス層。
type Service struct {
	sanitizer Sanitizer
	pdf       PDFRenderer
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(sanitizer Sanitizer, pdf PDFRenderer, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		sanitizer: sanitizer,
		pdf:       pdf,
		metrics:   mc,
	}
}

// ParseFormat は形式名を正規化する。未対応の場合はErrUnsupportedFormatを返す。
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := contentTypes[f]; !ok {
		return "", ErrUnsupportedFormat
	}
	return f, nil
}

// Generate はHTMLをサニタイズして指定形式のドキュメントを生成する。
func (s *Service) Generate(ctx context.Context, req Request) (*Document, error) {
	format, err := ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.HTML) == "" {
		return nil, model.NewValidationError("contentは必須です")
	}

	clean := s.sanitizer.Sanitize(req.HTML)

	var body []byte
	switch format {
	case FormatPDF:
		body, err = s.pdf.RenderPDF(ctx, wrapHTML(clean))
		if err != nil {
			return nil, fmt.Errorf("PDFの生成に失敗しました: %w", err)
		}
	case FormatDOCX:
		body, err = BuildDOCX(clean)
		if err != nil {
			return nil, fmt.Errorf("DOCXの生成に失敗しました: %w", err)
		}
	case FormatMarkdown:
		md, err := htmltomarkdown.ConvertString(clean)
		if err != nil {
			return nil, fmt.Errorf("Markdownへの変換に失敗しました: %w", err)
		}
		body = []byte(md)
	}

	s.metrics.RecordDocumentExported(string(format))
	slog.Info("ドキュメントを生成しました",
		slog.String("format", string(format)),
		slog.Int("size", len(body)),
	)

	return &Document{
		FileName:    fileNameFor(req.FileName, format),
		ContentType: contentTypes[format],
		Body:        body,
	}, nil
}

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}._ -]+`)

// fileNameFor はダウンロード用のファイル名を決める。
// パス要素と拡張子を除き、指定形式の拡張子を付ける。
func fileNameFor(name string, format Format) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(unsafeFileChars.ReplaceAllString(base, "_"), " ._")
	if base == "" {
		base = "document"
	}
	return base + "." + string(format)
}

// wrapHTML は本文をA4印刷用のHTML文書に埋め込む。
func wrapHTML(body string) string {
	return `<!DOCTYPE html><html><head><meta charset="utf-8"><style>
@page { size: A4; margin: 20mm; }
body { font-family: sans-serif; font-size: 11pt; line-height: 1.5; }
p { margin: 0 0 10pt 0; }
</style></head><body>` + body + `</body></html>`
}
