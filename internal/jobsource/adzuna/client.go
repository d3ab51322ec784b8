// Package adzuna はAdzuna求人検索APIのソースアダプタを提供する。
package adzuna

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/jobtrail/internal/jobsource"
	"github.com/hitoshi/jobtrail/internal/model"
)

const (
	// PlatformName はAdzuna由来の求人のplatform_name。
	PlatformName = "adzuna"
	// defaultBaseURL はAdzuna APIのベースURL。
	defaultBaseURL = "https://api.adzuna.com"
	// maxBodySize はレスポンスボディの読み取り上限。
	maxBodySize = 5 * 1024 * 1024
)

// Client はAdzuna求人検索APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	appID      string
	appKey     string
	country    string
	endpoint   string // テスト用にベースURLを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合は本番のAPIを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, appID, appKey, country, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if country == "" {
		country = "us"
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		appID:      appID,
		appKey:     appKey,
		country:    strings.ToLower(country),
		endpoint:   strings.TrimSuffix(baseURL, "/"),
	}
}

// Name はplatform_nameを返す。
func (c *Client) Name() string { return PlatformName }

// searchResponse はAdzuna検索APIのレスポンス。
type searchResponse struct {
	Count   int         `json:"count"`
	Results []jobResult `json:"results"`
}

type jobResult struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Created      string `json:"created"`
	RedirectURL  string `json:"redirect_url"`
	ContractType string `json:"contract_type"`
	ContractTime string `json:"contract_time"`
	Company      struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

// Search はAdzuna APIで求人を検索する。
// 非2xx、通信失敗、JSONでないレスポンスはエラーとして返す。
func (c *Client) Search(ctx context.Context, q jobsource.Query) ([]model.Job, error) {
	reqURL, err := c.buildURL(q)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Jobtrail/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Adzuna APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("search_text", q.SearchText),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Adzuna APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("search_text", q.SearchText),
		)
		return nil, fmt.Errorf("Adzuna APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("Adzuna APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	jobs := make([]model.Job, 0, len(result.Results))
	for _, r := range result.Results {
		jobs = append(jobs, normalize(r))
	}
	return jobs, nil
}

// buildURL は検索APIのURLを組み立てる。ページ番号はパスに含める。
func (c *Client) buildURL(q jobsource.Query) (string, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	reqURL, err := url.Parse(fmt.Sprintf("%s/v1/api/jobs/%s/search/%d", c.endpoint, url.PathEscape(c.country), page))
	if err != nil {
		return "", fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	params := reqURL.Query()
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	params.Set("content-type", "application/json")
	if q.PageSize > 0 {
		params.Set("results_per_page", strconv.Itoa(q.PageSize))
	}
	if q.SearchText != "" {
		params.Set("what", q.SearchText)
	}
	if q.Location != "" {
		params.Set("where", q.Location)
	}
	if q.MaxDaysOld > 0 {
		params.Set("max_days_old", strconv.Itoa(q.MaxDaysOld))
	}
	switch q.JobType {
	case model.JobTypeFullTime:
		params.Set("full_time", "1")
	case model.JobTypeContract:
		params.Set("contract", "1")
	}
	reqURL.RawQuery = params.Encode()
	return reqURL.String(), nil
}

// normalize はAdzunaの求人を内部スキーマに変換する。
// IDが無い場合は会社名・タイトル・作成日時から代替IDを生成する。
func normalize(r jobResult) model.Job {
	job := model.Job{
		ExternalJobID: model.BoundExternalID(strings.TrimSpace(r.ID)),
		Title:         strings.TrimSpace(r.Title),
		Company:       strings.TrimSpace(r.Company.DisplayName),
		Location:      strings.TrimSpace(r.Location.DisplayName),
		JobType:       model.JobTypeFullTime,
		Description:   r.Description,
		PlatformName:  PlatformName,
		Link:          r.RedirectURL,
		IsActive:      true,
	}
	if r.ContractType == "contract" {
		job.JobType = model.JobTypeContract
	}

	var created time.Time
	if r.Created != "" {
		if t, err := time.Parse(time.RFC3339, r.Created); err == nil {
			created = t
			job.PostedAt = &t
		}
	}
	if job.ExternalJobID == "" {
		job.ExternalJobID = model.SynthesizeExternalID(job.Company, job.Title, created)
	}
	return job
}

// compile-time interface check
var _ jobsource.Source = (*Client)(nil)
