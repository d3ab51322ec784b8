package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/resume"
)

// multipartOverhead はファイル本体以外のマルチパート部分に許容するサイズ。
const multipartOverhead = 1 << 20

// ResumeServiceInterface は履歴書ハンドラーが必要とするサービスインターフェース。
type ResumeServiceInterface interface {
	MaxSize() int64

	Upload(ctx context.Context, uid string, in resume.Upload) (*model.Resume, error)
	List(ctx context.Context, uid string) ([]model.Resume, error)
	Get(ctx context.Context, uid, id string) (*model.Resume, error)
	Open(ctx context.Context, uid, id string) (*model.Resume, io.ReadCloser, error)
	Delete(ctx context.Context, uid, id string) error

	UploadTailored(ctx context.Context, uid string, in resume.Upload, jobID *int64) (*model.TailoredResume, error)
	ListTailored(ctx context.Context, uid string) ([]model.TailoredResume, error)
	GetTailored(ctx context.Context, uid, id string) (*model.TailoredResume, error)
	OpenTailored(ctx context.Context, uid, id string) (*model.TailoredResume, io.ReadCloser, error)
	UpdateTailoredLabel(ctx context.Context, uid, id, label string) (*model.TailoredResume, error)
	DeleteTailored(ctx context.Context, uid, id string) error
}

// ResumeHandler は履歴書ファイルのHTTPハンドラー。
type ResumeHandler struct {
	service ResumeServiceInterface
}

// NewResumeHandler はResumeHandlerを生成する。
func NewResumeHandler(service ResumeServiceInterface) *ResumeHandler {
	return &ResumeHandler{service: service}
}

type resumeResponse struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	FileName    string    `json:"file_name"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

type tailoredResumeResponse struct {
	resumeResponse
	JobID     *int64    `json:"job_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

type updateLabelRequest struct {
	Label string `json:"label"`
}

// Upload は履歴書ファイルをアップロードする。
// POST /api/resumes (multipart: file, label)
func (h *ResumeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	in, cleanup, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	res, err := h.service.Upload(r.Context(), uid, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResumeResponse(res))
}

// List は履歴書一覧を返す。
// GET /api/resumes
func (h *ResumeHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), uid)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]resumeResponse, 0, len(list))
	for i := range list {
		out = append(out, toResumeResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get は履歴書のメタデータを返す。
// GET /api/resumes/{id}
func (h *ResumeHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	res, err := h.service.Get(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResumeResponse(res))
}

// Download は履歴書ファイルの本体を返す。
// GET /api/resumes/{id}/file
func (h *ResumeHandler) Download(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	res, body, err := h.service.Open(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer body.Close()

	streamFile(w, res.FileName, res.ContentType, res.FileSize, body)
}

// Delete は履歴書を削除する。
// DELETE /api/resumes/{id}
func (h *ResumeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadTailored は求人別に調整した履歴書ファイルをアップロードする。
// POST /api/tailored-resumes (multipart: file, label, job_id)
func (h *ResumeHandler) UploadTailored(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	in, cleanup, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	var jobID *int64
	if raw := strings.TrimSpace(r.FormValue("job_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("job_idは整数で指定してください"))
			return
		}
		jobID = &id
	}

	res, err := h.service.UploadTailored(r.Context(), uid, in, jobID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTailoredResumeResponse(res))
}

// ListTailored は調整済み履歴書一覧を返す。
// GET /api/tailored-resumes
func (h *ResumeHandler) ListTailored(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListTailored(r.Context(), uid)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]tailoredResumeResponse, 0, len(list))
	for i := range list {
		out = append(out, toTailoredResumeResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTailored は調整済み履歴書のメタデータを返す。
// GET /api/tailored-resumes/{id}
func (h *ResumeHandler) GetTailored(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	res, err := h.service.GetTailored(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTailoredResumeResponse(res))
}

// DownloadTailored は調整済み履歴書ファイルの本体を返す。
// GET /api/tailored-resumes/{id}/file
func (h *ResumeHandler) DownloadTailored(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	res, body, err := h.service.OpenTailored(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer body.Close()

	streamFile(w, res.FileName, res.ContentType, res.FileSize, body)
}

// UpdateTailoredLabel は調整済み履歴書のラベルを更新する。
// PATCH /api/tailored-resumes/{id}
func (h *ResumeHandler) UpdateTailoredLabel(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var req updateLabelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.UpdateTailoredLabel(r.Context(), uid, chi.URLParam(r, "id"), req.Label)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTailoredResumeResponse(res))
}

// DeleteTailored は調整済み履歴書を削除する。
// DELETE /api/tailored-resumes/{id}
func (h *ResumeHandler) DeleteTailored(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTailored(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// readUpload はマルチパートフォームからファイルとラベルを読み取る。
// 本体が上限を超える場合は413を書き込む。
func (h *ResumeHandler) readUpload(w http.ResponseWriter, r *http.Request) (resume.Upload, func(), bool) {
	maxSize := h.service.MaxSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewFileTooLargeError(maxSize))
			return resume.Upload{}, nil, false
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("multipart/form-dataで送信してください"))
		return resume.Upload{}, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll()
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("fileは必須です"))
		return resume.Upload{}, nil, false
	}

	cleanup := func() {
		file.Close()
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("一時ファイルの削除に失敗しました", slog.String("error", err.Error()))
		}
	}

	return resume.Upload{
		FileName: header.Filename,
		Label:    r.FormValue("label"),
		Size:     header.Size,
		Content:  file,
	}, cleanup, true
}

// streamFile はファイル本体をダウンロード用レスポンスとして書き込む。
func streamFile(w http.ResponseWriter, fileName, contentType string, size int64, body io.Reader) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(fileName))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("ファイルの送信に失敗しました",
			slog.String("file_name", fileName),
			slog.String("error", err.Error()),
		)
	}
}

func toResumeResponse(r *model.Resume) resumeResponse {
	return resumeResponse{
		ID:          r.ID,
		Label:       r.Label,
		FileName:    r.FileName,
		FilePath:    r.FilePath,
		FileSize:    r.FileSize,
		ContentType: r.ContentType,
		CreatedAt:   r.CreatedAt,
	}
}

func toTailoredResumeResponse(r *model.TailoredResume) tailoredResumeResponse {
	return tailoredResumeResponse{
		resumeResponse: resumeResponse{
			ID:          r.ID,
			Label:       r.Label,
			FileName:    r.FileName,
			FilePath:    r.FilePath,
			FileSize:    r.FileSize,
			ContentType: r.ContentType,
			CreatedAt:   r.CreatedAt,
		},
		JobID:     r.JobID,
		UpdatedAt: r.UpdatedAt,
	}
}
