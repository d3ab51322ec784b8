// Package catalog は永続化済み求人の検索・取得・取り込みを提供する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/jobtrail/internal/metrics"
	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/repository"
)

const (
	// DefaultPage はページ番号の既定値。
	DefaultPage = 1
	// DefaultPageSize はページサイズの既定値。
	DefaultPageSize = 10
	// MaxPageSize はページサイズの上限の既定値。
	MaxPageSize = 100
	// MaxPage はページ番号の上限。OFFSETのオーバーフローを防ぐ。
	MaxPage = 1_000_000
)

// Page は求人検索結果の1ページ。
type Page struct {
	Data     []model.Job
	Page     int
	PageSize int
	Total    int
}

// Service は求人カタログのサービス層。
type Service struct {
	jobRepo     repository.JobRepository
	metrics     metrics.MetricsCollector
	maxPageSize int
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// maxPageSizeが0以下の場合はMaxPageSizeを使用する。
func NewService(jobRepo repository.JobRepository, mc metrics.MetricsCollector, maxPageSize int) *Service {
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		jobRepo:     jobRepo,
		metrics:     mc,
		maxPageSize: maxPageSize,
		now:         time.Now,
	}
}

// Search は条件に一致する有効な求人をページングして返す。
// 件数を先に取得し、オフセットが件数以上の場合はデータ取得を行わない。
func (s *Service) Search(ctx context.Context, filter model.JobFilter, page, pageSize int) (*Page, error) {
	page, pageSize = s.normalizePaging(page, pageSize)
	criteria := repository.JobCriteria{
		SearchText:  strings.TrimSpace(filter.SearchText),
		JobType:     strings.TrimSpace(filter.JobType),
		Location:    strings.TrimSpace(filter.Location),
		PostedAfter: model.DatePostedCutoff(filter.DatePosted, s.now()),
	}

	total, err := s.jobRepo.Count(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("求人件数の取得に失敗しました: %w", err)
	}

	result := &Page{
		Data:     []model.Job{},
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}

	offset := (page - 1) * pageSize
	if offset >= total {
		return result, nil
	}

	jobs, err := s.jobRepo.Search(ctx, criteria, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("求人の検索に失敗しました: %w", err)
	}
	if jobs != nil {
		result.Data = jobs
	}
	return result, nil
}

// Get は指定IDの求人を返す。存在しない場合はJOB_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, jobID int64) (*model.Job, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("求人の取得に失敗しました: %w", err)
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(jobID)
	}
	return job, nil
}

// Ingest は外部ソースの求人を (platform_name, external_job_id) で冪等に保存し、
// 内部IDを採番した求人を返す。既存の求人は再有効化のみ行う。
func (s *Service) Ingest(ctx context.Context, jobs []model.Job) ([]model.Job, error) {
	valid := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.PlatformName == "" || j.ExternalJobID == "" {
			slog.Warn("識別子のない求人をスキップしました",
				slog.String("platform_name", j.PlatformName),
				slog.String("title", j.Title),
			)
			continue
		}
		if len(j.PlatformName) > model.MaxPlatformNameLength {
			slog.Warn("プラットフォーム名が長すぎる求人をスキップしました",
				slog.String("platform_name", j.PlatformName),
				slog.String("title", j.Title),
			)
			continue
		}
		j.ExternalJobID = model.BoundExternalID(j.ExternalJobID)
		valid = append(valid, j)
	}
	if len(valid) == 0 {
		return []model.Job{}, nil
	}

	saved, err := s.jobRepo.UpsertBatch(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("求人の保存に失敗しました: %w", err)
	}
	s.metrics.RecordJobsIngested(len(saved))
	return saved, nil
}

// normalizePaging はページ番号とページサイズに既定値と上限を適用する。
func (s *Service) normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}
	return page, pageSize
}
