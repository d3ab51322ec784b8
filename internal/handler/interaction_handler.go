package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobtrail/internal/model"
)

// InteractionServiceInterface はインタラクションハンドラーが必要とするサービスインターフェース。
type InteractionServiceInterface interface {
	// Record は閲覧を記録する。既に存在する場合は既存の行を返し、createdはfalseになる。
	Record(ctx context.Context, uid string, jobID int64, externalJobID string) (*model.Interaction, bool, error)
	CreateManual(ctx context.Context, uid string, in model.ManualJob) (*model.InteractionWithJob, error)
	Update(ctx context.Context, uid, interactionID string, status, notes *string) (*model.Interaction, error)
	Delete(ctx context.Context, uid, interactionID string) error
	List(ctx context.Context, uid, status string) ([]model.InteractionWithJob, error)
	Counts(ctx context.Context, uid string) (*model.InteractionCounts, error)
}

// InteractionHandler は求人インタラクションのHTTPハンドラー。
type InteractionHandler struct {
	service InteractionServiceInterface
}

// NewInteractionHandler はInteractionHandlerを生成する。
func NewInteractionHandler(service InteractionServiceInterface) *InteractionHandler {
	return &InteractionHandler{
		service: service,
	}
}

type recordInteractionRequest struct {
	JobID         int64  `json:"job_id"`
	ExternalJobID string `json:"external_job_id"`
}

type updateInteractionRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

type manualJobRequest struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
}

type interactionResponse struct {
	InteractionID string    `json:"interaction_id"`
	JobID         int64     `json:"job_id"`
	ExternalJobID string    `json:"external_job_id"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type interactionWithJobResponse struct {
	interactionResponse
	Job jobResponse `json:"job"`
}

type interactionCountsResponse struct {
	Clicked            int `json:"clicked"`
	Applied            int `json:"applied"`
	UnderConsideration int `json:"under_consideration"`
	Total              int `json:"total"`
}

// List はユーザーのインタラクションを求人情報付きで返す。
// GET /api/interactions?status=
func (h *InteractionHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), uid, r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]interactionWithJobResponse, 0, len(list))
	for i := range list {
		out = append(out, toInteractionWithJobResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// Record は求人の閲覧を記録する。既に記録済みの場合は既存のインタラクションを200で返す。
// POST /api/interactions
func (h *InteractionHandler) Record(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var req recordInteractionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	interaction, created, err := h.service.Record(r.Context(), uid, req.JobID, req.ExternalJobID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toInteractionResponse(interaction))
}

// Counts はステータスごとのインタラクション件数を返す。
// GET /api/interactions/counts
func (h *InteractionHandler) Counts(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	counts, err := h.service.Counts(r.Context(), uid)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, interactionCountsResponse{
		Clicked:            counts.Clicked,
		Applied:            counts.Applied,
		UnderConsideration: counts.UnderConsideration,
		Total:              counts.Total,
	})
}

// Update はステータスとメモを更新する。
// PATCH /api/interactions/{id}
func (h *InteractionHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var req updateInteractionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	interaction, err := h.service.Update(r.Context(), uid, chi.URLParam(r, "id"), req.Status, req.Notes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInteractionResponse(interaction))
}

// Delete はインタラクションを削除する。
// DELETE /api/interactions/{id}
func (h *InteractionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// CreateManual は手動で入力した求人と応募済みインタラクションを作成する。
// POST /api/jobs/manual
func (h *InteractionHandler) CreateManual(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var req manualJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.CreateManual(r.Context(), uid, model.ManualJob{
		Title:       req.Title,
		Company:     req.Company,
		Location:    req.Location,
		Link:        req.Link,
		Description: req.Description,
		Notes:       req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInteractionWithJobResponse(result))
}

func toInteractionResponse(i *model.Interaction) interactionResponse {
	return interactionResponse{
		InteractionID: i.ID,
		JobID:         i.JobID,
		ExternalJobID: i.ExternalJobID,
		Status:        string(i.Status),
		Notes:         i.Notes,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

func toInteractionWithJobResponse(i *model.InteractionWithJob) interactionWithJobResponse {
	return interactionWithJobResponse{
		interactionResponse: toInteractionResponse(&i.Interaction),
		Job:                 toJobResponse(i.Job),
	}
}
