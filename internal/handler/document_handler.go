package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/jobtrail/internal/export"
)

// DocumentExporterInterface はHTMLからドキュメントを生成するサービスのインターフェース。
type DocumentExporterInterface interface {
	Generate(ctx context.Context, req export.Request) (*export.Document, error)
}

// DocumentHandler はドキュメント生成のHTTPハンドラー。
type DocumentHandler struct {
	exporter DocumentExporterInterface
}

// NewDocumentHandler はDocumentHandlerを生成する。
func NewDocumentHandler(exporter DocumentExporterInterface) *DocumentHandler {
	return &DocumentHandler{exporter: exporter}
}

type exportDocumentRequest struct {
	Format   string `json:"format"`
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// Export はリクエストで受け取ったHTMLを指定形式のファイルに変換して返す。
// 未対応の形式の場合は204を返す。
// POST /api/documents/export
func (h *DocumentHandler) Export(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUID(w, r); !ok {
		return
	}

	var req exportDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := h.exporter.Generate(r.Context(), export.Request{
		Format:   req.Format,
		FileName: req.FileName,
		HTML:     req.Content,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeAttachment(w, doc.FileName, doc.ContentType, doc.Body)
}
