// Package aggregator は複数の外部求人ソースを並行に呼び出し、結果を統合する。
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/jobtrail/internal/jobsource"
	"github.com/hitoshi/jobtrail/internal/metrics"
	"github.com/hitoshi/jobtrail/internal/model"
)

const (
	// DefaultPageSize は呼び出し側がページサイズを指定しない場合の件数。
	DefaultPageSize = 20
	// MaxPage はソースへ転送するページ番号の上限。
	MaxPage = 1000
)

// Params は外部求人検索のパラメータ。
type Params struct {
	SearchText string
	JobType    string
	Location   string
	DatePosted string
	Page       int
	PageSize   int
}

// JobStore は取得した求人を永続化する先。
type JobStore interface {
	Ingest(ctx context.Context, jobs []model.Job) ([]model.Job, error)
}

// Gateway は求人ソースの集約ゲートウェイ。
// ソースの失敗は空の結果として扱い、リトライは行わない。
type Gateway struct {
	sources  []jobsource.Source
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	pageSize int
	timeout  time.Duration
}

// NewGateway はGatewayの新しいインスタンスを生成する。
// pageSizeが0以下の場合はDefaultPageSizeを使用し、timeoutが0以下の場合はソースごとの期限を設けない。
func NewGateway(sources []jobsource.Source, mc metrics.MetricsCollector, logger *slog.Logger, pageSize int, timeout time.Duration) *Gateway {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Gateway{
		sources:  sources,
		metrics:  mc,
		logger:   logger,
		pageSize: pageSize,
		timeout:  timeout,
	}
}

// Sources は登録されているソース名を返す。
func (g *Gateway) Sources() []string {
	names := make([]string, 0, len(g.sources))
	for _, s := range g.sources {
		names = append(names, s.Name())
	}
	return names
}

// BuildQuery はパラメータにデフォルト値を適用してソース向けの検索条件に変換する。
// pageはMaxPage、pageSizeはゲートウェイのページサイズを上限とする。
func (g *Gateway) BuildQuery(p Params) jobsource.Query {
	q := jobsource.Query{
		SearchText: strings.TrimSpace(p.SearchText),
		JobType:    model.JobType(strings.TrimSpace(p.JobType)),
		Location:   strings.TrimSpace(p.Location),
		Page:       p.Page,
		PageSize:   p.PageSize,
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize <= 0 || q.PageSize > g.pageSize {
		q.PageSize = g.pageSize
	}
	if days, ok := model.DatePostedDays(p.DatePosted); ok {
		q.MaxDaysOld = days
	}
	return q
}

// FetchJobs は全ソースを並行に呼び出し、ソース順に連結して重複を除いた求人を返す。
// 失敗したソースはログとメトリクスに記録し、空の結果として扱う。
// ソースの失敗で他のソースを止めないため、goroutineはエラーもpanicも返さない。
func (g *Gateway) FetchJobs(ctx context.Context, p Params) []model.Job {
	q := g.BuildQuery(p)
	results := make([][]model.Job, len(g.sources))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, src := range g.sources {
		eg.Go(func() error {
			results[i] = g.searchSource(egCtx, src, q)
			return nil
		})
	}
	// searchSourceはエラーを空の結果に変換するため、Waitは常にnilを返す
	_ = eg.Wait()

	return dedupe(results)
}

// Ingest はFetchJobsの結果をstoreに保存し、内部IDを採番した求人を返す。
func (g *Gateway) Ingest(ctx context.Context, store JobStore, p Params) ([]model.Job, error) {
	jobs := g.FetchJobs(ctx, p)
	if len(jobs) == 0 {
		return []model.Job{}, nil
	}

	saved, err := store.Ingest(ctx, jobs)
	if err != nil {
		return nil, fmt.Errorf("求人の取り込みに失敗: %w", err)
	}

	g.logger.Info("外部求人を取り込みました",
		slog.String("search_text", p.SearchText),
		slog.Int("count", len(saved)),
	)
	return saved, nil
}

// searchSource は1つのソースを呼び出す。エラーとpanicは空の結果に変換する。
func (g *Gateway) searchSource(ctx context.Context, src jobsource.Source, q jobsource.Query) (jobs []model.Job) {
	defer func() {
		if rec := recover(); rec != nil {
			g.metrics.RecordSourceFailure(src.Name())
			g.logger.Error("求人ソースでpanicが発生しました",
				slog.String("source", src.Name()),
				slog.Any("panic", rec),
			)
			jobs = nil
		}
	}()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	jobs, err := src.Search(ctx, q)
	g.metrics.RecordSourceLatency(src.Name(), time.Since(start))

	if err != nil {
		g.metrics.RecordSourceFailure(src.Name())
		g.logger.Warn("求人ソースの呼び出しに失敗しました",
			slog.String("source", src.Name()),
			slog.String("search_text", q.SearchText),
			slog.String("error", err.Error()),
		)
		return nil
	}

	g.metrics.RecordSourceSuccess(src.Name())
	return jobs
}

// dedupe はソース順に連結し、(platform_name, external_job_id) の重複を除く。
func dedupe(results [][]model.Job) []model.Job {
	seen := make(map[string]struct{})
	out := make([]model.Job, 0)
	for _, jobs := range results {
		for _, j := range jobs {
			key := model.JobKey(j)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, j)
		}
	}
	return out
}
