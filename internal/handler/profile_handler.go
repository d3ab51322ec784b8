package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/jobtrail/internal/export"
	"github.com/hitoshi/jobtrail/internal/model"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Get(ctx context.Context, uid string) (*model.Profile, error)
	Save(ctx context.Context, uid string, data json.RawMessage) (*model.Profile, error)
	Export(ctx context.Context, uid, format string) (*export.Document, error)
}

// ProfileHandler はプロフィールのHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type saveProfileRequest struct {
	ResumeData json.RawMessage `json:"resume_data"`
}

type profileResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	ResumeData json.RawMessage `json:"resume_data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Get はプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), uid)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// Save はプロフィールを作成または上書きする。
// PUT /api/profile
func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var req saveProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Save(r.Context(), uid, req.ResumeData)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// Export は保存済みプロフィールを指定形式のファイルとして返す。
// 未対応の形式の場合は204を返す。
// GET /api/profile/export?format=pdf|docx|md
func (h *ProfileHandler) Export(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	doc, err := h.service.Export(r.Context(), uid, r.URL.Query().Get("format"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeAttachment(w, doc.FileName, doc.ContentType, doc.Body)
}

func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID:         p.ID,
		UserID:     p.UserID,
		ResumeData: p.ResumeData,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
