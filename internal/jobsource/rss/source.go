// Package rss はRSS/Atom形式の求人ボードを求人ソースとして扱うアダプタを提供する。
package rss

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/jobtrail/internal/jobsource"
	"github.com/hitoshi/jobtrail/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Source は1つの求人ボードフィードを検索対象とするソース。
// フィード全体を取得し、検索条件はローカルで適用する。
type Source struct {
	name        string
	feedURL     string
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	now         func() time.Time
}

// NewSource はSourceの新しいインスタンスを生成する。
// nameが空の場合はフィードURLのホスト名を使用する。
func NewSource(name, feedURL string, ssrfGuard SSRFValidator, logger *slog.Logger, timeout time.Duration, maxBodySize int64) *Source {
	if name == "" {
		if u, err := url.Parse(feedURL); err == nil {
			name = strings.TrimPrefix(u.Hostname(), "www.")
		}
	}
	return &Source{
		name:        strings.ToLower(name),
		feedURL:     feedURL,
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		now:         time.Now,
	}
}

// Name はplatform_nameを返す。
func (s *Source) Name() string { return s.name }

// Search はフィードを取得して条件に一致する求人を返す。
func (s *Source) Search(ctx context.Context, q jobsource.Query) ([]model.Job, error) {
	if err := s.ssrfGuard.ValidateURL(s.feedURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Jobtrail/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Error("求人フィードの取得に失敗しました",
			slog.String("source", s.name),
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("求人フィードがエラーステータスを返しました",
			slog.String("source", s.name),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("求人フィードがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		s.logger.Error("求人フィードのパースに失敗しました",
			slog.String("source", s.name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	jobs := convertItems(s.name, parsed.Items)
	return paginate(filterJobs(jobs, q, s.now()), q.Page, q.PageSize), nil
}

// convertItems はフィードの記事を求人に変換する。
func convertItems(platform string, items []*gofeed.Item) []model.Job {
	jobs := make([]model.Job, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		jobs = append(jobs, convertItem(platform, item))
	}
	return jobs
}

func convertItem(platform string, item *gofeed.Item) model.Job {
	company, title := splitTitle(strings.TrimSpace(item.Title))

	job := model.Job{
		Title:        title,
		Company:      company,
		JobType:      model.JobTypeFullTime,
		PlatformName: platform,
		Link:         strings.TrimSpace(item.Link),
		IsActive:     true,
	}
	if company == "" && item.Author != nil {
		job.Company = strings.TrimSpace(item.Author.Name)
	}

	if item.Custom != nil {
		job.Location = strings.TrimSpace(item.Custom["region"])
		if strings.Contains(strings.ToLower(item.Custom["type"]), "contract") {
			job.JobType = model.JobTypeContract
		}
	}

	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		job.PostedAt = &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		job.PostedAt = &t
	}

	desc := item.Description
	if desc == "" {
		desc = item.Content
	}
	job.Description = toMarkdown(desc)

	switch {
	case item.GUID != "":
		job.ExternalJobID = model.BoundExternalID(item.GUID)
	case job.Link != "":
		job.ExternalJobID = model.BoundExternalID(job.Link)
	default:
		var created time.Time
		if job.PostedAt != nil {
			created = *job.PostedAt
		}
		job.ExternalJobID = model.SynthesizeExternalID(job.Company, job.Title, created)
	}
	return job
}

// splitTitle は "Company: Title" 形式のタイトルを分割する。
// 区切りが無い場合は会社名を空で返す。
func splitTitle(raw string) (company, title string) {
	if c, t, ok := strings.Cut(raw, ": "); ok && c != "" && t != "" {
		return strings.TrimSpace(c), strings.TrimSpace(t)
	}
	return "", raw
}

// toMarkdown はHTMLの説明文をMarkdownに変換する。変換に失敗した場合は元の文字列を返す。
func toMarkdown(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return html
	}
	return strings.TrimSpace(md)
}

// filterJobs は検索条件をローカルに適用する。
func filterJobs(jobs []model.Job, q jobsource.Query, now time.Time) []model.Job {
	text := strings.ToLower(strings.TrimSpace(q.SearchText))
	location := strings.ToLower(strings.TrimSpace(q.Location))
	cutoff := q.Cutoff(now)

	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if text != "" &&
			!strings.Contains(strings.ToLower(j.Title), text) &&
			!strings.Contains(strings.ToLower(j.Description), text) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(j.Location), location) {
			continue
		}
		if q.JobType != "" && j.JobType != q.JobType {
			continue
		}
		if !cutoff.IsZero() && (j.PostedAt == nil || j.PostedAt.Before(cutoff)) {
			continue
		}
		out = append(out, j)
	}
	return out
}

// paginate はページ番号とページサイズで切り出す。pageSizeが0以下の場合は全件を返す。
func paginate(jobs []model.Job, page, pageSize int) []model.Job {
	if pageSize <= 0 {
		return jobs
	}
	if page < 1 {
		page = 1
	}
	// 乗算前に範囲外を判定し、オーバーフローを避ける
	if len(jobs) == 0 || page-1 > (len(jobs)-1)/pageSize {
		return []model.Job{}
	}
	start := (page - 1) * pageSize
	end := len(jobs)
	if pageSize < end-start {
		end = start + pageSize
	}
	return jobs[start:end]
}

// compile-time interface check
var _ jobsource.Source = (*Source)(nil)
