// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Auth（OIDC発行者。Clerk等のフロントエンドAPI URL）
	AuthIssuerURL string `env:"AUTH_ISSUER_URL,required,notEmpty"`
	AuthAudience  string `env:"AUTH_AUDIENCE"`

	// Adzuna
	AdzunaAppID   string `env:"ADZUNA_APP_ID"`
	AdzunaAppKey  string `env:"ADZUNA_APP_KEY"`
	AdzunaCountry string `env:"ADZUNA_COUNTRY"  envDefault:"us"`
	AdzunaBaseURL string `env:"ADZUNA_BASE_URL" envDefault:"https://api.adzuna.com"`

	// RSS求人ボード（name=url をカンマ区切りで指定）
	JobFeeds []string `env:"JOB_FEEDS" envSeparator:","`

	// Job sources
	SourceTimeout      time.Duration `env:"SOURCE_TIMEOUT"       envDefault:"10s"`
	SourceMaxSize      int64         `env:"SOURCE_MAX_SIZE"      envDefault:"5242880"`
	AggregatorPageSize int           `env:"AGGREGATOR_PAGE_SIZE" envDefault:"20"`
	CatalogMaxPageSize int           `env:"CATALOG_MAX_PAGE_SIZE" envDefault:"100"`

	// Ingest（"検索語|勤務地" をセミコロン区切りで指定）
	IngestQueries []string `env:"INGEST_QUERIES" envSeparator:";"`

	// Rate Limit（req/min/user）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitSearch  int `env:"RATE_LIMIT_SEARCH"  envDefault:"30"`

	// Storage
	StorageDir    string `env:"STORAGE_DIR"     envDefault:"./data/storage"`
	StorageBucket string `env:"STORAGE_BUCKET"  envDefault:"resumes"`
	UploadMaxSize int64  `env:"UPLOAD_MAX_SIZE" envDefault:"5242880"`

	// Export
	ChromePath    string        `env:"CHROME_PATH"`
	ExportTimeout time.Duration `env:"EXPORT_TIMEOUT" envDefault:"60s"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// HSTSはTLS終端の背後で公開する場合に有効にする
	HSTS bool `env:"HSTS" envDefault:"false"`

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	cfg.sanitize()
	if err := cfg.validateFeeds(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AdzunaEnabled はAdzunaの認証情報が設定されているかを返す。
func (c *Config) AdzunaEnabled() bool {
	return c.AdzunaAppID != "" && c.AdzunaAppKey != ""
}

// FeedSource はRSS求人ボードの設定。
type FeedSource struct {
	Name string
	URL  string
}

// maxFeedNameLength はフィード名の上限。求人のplatform_name列に保存されるため列長に合わせる。
const maxFeedNameLength = 50

// FeedSources はJOB_FEEDSを name=url の組に分解する。
// 名前が省略された場合はURLのホスト名（先頭のwww.を除く）を名前とする。
func (c *Config) FeedSources() []FeedSource {
	var sources []FeedSource
	for _, entry := range c.JobFeeds {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, rawURL, found := strings.Cut(entry, "=")
		if !found {
			name, rawURL = "", entry
		}
		name, rawURL = strings.TrimSpace(name), strings.TrimSpace(rawURL)
		if name == "" {
			if u, err := url.Parse(rawURL); err == nil {
				name = strings.TrimPrefix(u.Hostname(), "www.")
			}
		}
		sources = append(sources, FeedSource{Name: strings.ToLower(name), URL: rawURL})
	}
	return sources
}

// validateFeeds はフィード名がplatform_nameに保存できる長さかを検証する。
func (c *Config) validateFeeds() error {
	for _, feed := range c.FeedSources() {
		if feed.Name == "" {
			return fmt.Errorf("JOB_FEEDS: フィード %q の名前を決定できません", feed.URL)
		}
		if len(feed.Name) > maxFeedNameLength {
			return fmt.Errorf("JOB_FEEDS: フィード名 %q が長すぎます（最大%d文字）", feed.Name, maxFeedNameLength)
		}
	}
	return nil
}

// IngestQuery は取り込みコマンドで実行する検索条件。
type IngestQuery struct {
	SearchText string
	Location   string
}

// Ingest はINGEST_QUERIESを検索条件に分解する。
func (c *Config) Ingest() []IngestQuery {
	var queries []IngestQuery
	for _, entry := range c.IngestQueries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		text, location, _ := strings.Cut(entry, "|")
		queries = append(queries, IngestQuery{
			SearchText: strings.TrimSpace(text),
			Location:   strings.TrimSpace(location),
		})
	}
	return queries
}

// sanitize は範囲外の値をデフォルトに戻す。
func (c *Config) sanitize() {
	if c.AggregatorPageSize <= 0 {
		c.AggregatorPageSize = 20
	}
	if c.CatalogMaxPageSize <= 0 {
		c.CatalogMaxPageSize = 100
	}
	if c.RateLimitGeneral <= 0 {
		c.RateLimitGeneral = 120
	}
	if c.RateLimitSearch <= 0 {
		c.RateLimitSearch = 30
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = 10 * time.Second
	}
	c.AuthIssuerURL = strings.TrimSuffix(c.AuthIssuerURL, "/")
}
