package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobtrail/internal/aggregator"
	"github.com/hitoshi/jobtrail/internal/catalog"
	"github.com/hitoshi/jobtrail/internal/model"
)

// CatalogServiceInterface は求人ハンドラーが必要とするカタログサービスのインターフェース。
// Ingestを持つため外部求人の保存先としても使う。
type CatalogServiceInterface interface {
	Search(ctx context.Context, filter model.JobFilter, page, pageSize int) (*catalog.Page, error)
	Get(ctx context.Context, jobID int64) (*model.Job, error)
	Ingest(ctx context.Context, jobs []model.Job) ([]model.Job, error)
}

// ExternalJobServiceInterface は外部求人ソースを横断検索して保存するサービスのインターフェース。
type ExternalJobServiceInterface interface {
	Ingest(ctx context.Context, store aggregator.JobStore, p aggregator.Params) ([]model.Job, error)
}

// JobHandler は求人検索のHTTPハンドラー。
type JobHandler struct {
	catalog  CatalogServiceInterface
	external ExternalJobServiceInterface
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(catalog CatalogServiceInterface, external ExternalJobServiceInterface) *JobHandler {
	return &JobHandler{
		catalog:  catalog,
		external: external,
	}
}

// jobResponse は求人情報のAPIレスポンス。
type jobResponse struct {
	JobID         int64      `json:"job_id"`
	ExternalJobID string     `json:"external_job_id"`
	Title         string     `json:"title"`
	Company       string     `json:"company"`
	Location      string     `json:"location"`
	JobType       string     `json:"job_type"`
	PostedAt      *time.Time `json:"posted_at"`
	Description   string     `json:"description"`
	PlatformName  string     `json:"platform_name"`
	Link          string     `json:"link"`
	IsActive      bool       `json:"is_active"`
}

// jobPageResponse は求人検索結果のページ。
type jobPageResponse struct {
	Data     []jobResponse `json:"data"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int           `json:"total"`
}

// Search は保存済みの求人を検索する。
// GET /api/jobs?searchText&jobType&location&datePosted&page&pageSize
func (h *JobHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize, ok := parsePaging(w, q)
	if !ok {
		return
	}

	result, err := h.catalog.Search(r.Context(), jobFilterFromQuery(q), page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, jobPageResponse{
		Data:     toJobResponses(result.Data),
		Page:     result.Page,
		PageSize: result.PageSize,
		Total:    result.Total,
	})
}

// Get は求人詳細を返す。
// GET /api/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || jobID <= 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewJobNotFoundError(0))
		return
	}

	job, err := h.catalog.Get(r.Context(), jobID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(*job))
}

// SearchExternal は外部求人ソースを横断検索し、結果を保存してから返す。
// どのソースも失敗した場合は空の配列を返す。
// GET /api/jobs/external?searchText&jobType&location&datePosted&page&pageSize
func (h *JobHandler) SearchExternal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize, ok := parsePaging(w, q)
	if !ok {
		return
	}
	filter := jobFilterFromQuery(q)

	jobs, err := h.external.Ingest(r.Context(), h.catalog, aggregator.Params{
		SearchText: filter.SearchText,
		JobType:    filter.JobType,
		Location:   filter.Location,
		DatePosted: filter.DatePosted,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// parsePaging はpageとpageSizeを読み取る。省略時は0を返し、既定値の適用はサービス層に任せる。
func parsePaging(w http.ResponseWriter, q url.Values) (int, int, bool) {
	page, err := optionalInt(q.Get("page"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("pageは整数で指定してください"))
		return 0, 0, false
	}
	pageSize, err := optionalInt(q.Get("pageSize"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("pageSizeは整数で指定してください"))
		return 0, 0, false
	}
	return page, pageSize, true
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func jobFilterFromQuery(q url.Values) model.JobFilter {
	return model.JobFilter{
		SearchText: strings.TrimSpace(q.Get("searchText")),
		JobType:    strings.TrimSpace(q.Get("jobType")),
		Location:   strings.TrimSpace(q.Get("location")),
		DatePosted: strings.TrimSpace(q.Get("datePosted")),
	}
}

func toJobResponse(j model.Job) jobResponse {
	return jobResponse{
		JobID:         j.ID,
		ExternalJobID: j.ExternalJobID,
		Title:         j.Title,
		Company:       j.Company,
		Location:      j.Location,
		JobType:       string(j.JobType),
		PostedAt:      j.PostedAt,
		Description:   j.Description,
		PlatformName:  j.PlatformName,
		Link:          j.Link,
		IsActive:      j.IsActive,
	}
}

func toJobResponses(jobs []model.Job) []jobResponse {
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	return out
}
