package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/jobtrail/internal/aggregator"
	"github.com/hitoshi/jobtrail/internal/auth"
	"github.com/hitoshi/jobtrail/internal/catalog"
	"github.com/hitoshi/jobtrail/internal/config"
	"github.com/hitoshi/jobtrail/internal/database"
	"github.com/hitoshi/jobtrail/internal/export"
	"github.com/hitoshi/jobtrail/internal/handler"
	"github.com/hitoshi/jobtrail/internal/interaction"
	"github.com/hitoshi/jobtrail/internal/jobsource"
	"github.com/hitoshi/jobtrail/internal/jobsource/adzuna"
	"github.com/hitoshi/jobtrail/internal/jobsource/rss"
	"github.com/hitoshi/jobtrail/internal/logger"
	"github.com/hitoshi/jobtrail/internal/metrics"
	"github.com/hitoshi/jobtrail/internal/middleware"
	"github.com/hitoshi/jobtrail/internal/profile"
	"github.com/hitoshi/jobtrail/internal/repository"
	"github.com/hitoshi/jobtrail/internal/resume"
	"github.com/hitoshi/jobtrail/internal/security"
	"github.com/hitoshi/jobtrail/internal/storage"
	"github.com/hitoshi/jobtrail/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ったJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを再構成する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		fmt.Fprint(w, Usage())
		return err
	}
	if cmd == CommandHelp {
		fmt.Fprint(w, Usage())
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandIngest:
		return runIngest(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(registry)

	// 3. トークン検証（起動時にディスカバリ文書を取得する）
	verifier, err := auth.NewVerifier(context.Background(), auth.VerifierConfig{
		IssuerURL: cfg.AuthIssuerURL,
		Audience:  cfg.AuthAudience,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	// 4. ドメインサービスの初期化
	svc, err := newServices(cfg, db, mc)
	if err != nil {
		return err
	}

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSearch),
	)
	defer rateLimiter.Stop()

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Verifier:          verifier,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HSTS:              cfg.HSTS,
		Logger:            slog.Default(),
		Metrics:           mc,
		Gatherer:          registry,
		HealthCheck: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},

		UserService:        svc.users,
		CatalogService:     svc.catalog,
		ExternalJobService: svc.gateway,
		InteractionService: svc.interactions,
		ProfileService:     svc.profiles,
		DocumentExporter:   svc.exporter,
		ResumeService:      svc.resumes,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// PDF生成はChromeの起動を含むためエクスポートのタイムアウトより長くする
		WriteTimeout: cfg.ExportTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Any("sources", svc.gateway.Sources()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runIngest は設定された検索条件で外部求人ソースを1回ずつ検索し、結果をカタログに保存して終了する。
// 検索条件ごとの失敗はログに記録して次の条件に進む。
func runIngest(ctx context.Context, cfg *config.Config) error {
	queries := cfg.Ingest()
	if len(queries) == 0 {
		return errors.New("INGEST_QUERIES is empty; nothing to ingest")
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	mc := metrics.NewCollector(prometheus.NewRegistry())
	catalogSvc := catalog.NewService(repository.NewPostgresJobRepo(db), mc, cfg.CatalogMaxPageSize)
	gateway := newGateway(cfg, security.NewSSRFGuard(), mc)

	if len(gateway.Sources()) == 0 {
		return errors.New("no job sources configured; set ADZUNA_APP_ID/ADZUNA_APP_KEY or JOB_FEEDS")
	}

	total := 0
	failed := 0
	for _, q := range queries {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		jobs, err := gateway.Ingest(ctx, catalogSvc, aggregator.Params{
			SearchText: q.SearchText,
			Location:   q.Location,
			Page:       1,
			PageSize:   cfg.AggregatorPageSize,
		})
		if err != nil {
			failed++
			slog.Error("ingest query failed",
				slog.String("search_text", q.SearchText),
				slog.String("location", q.Location),
				slog.String("error", err.Error()),
			)
			continue
		}

		total += len(jobs)
		slog.Info("ingest query completed",
			slog.String("search_text", q.SearchText),
			slog.String("location", q.Location),
			slog.Int("jobs", len(jobs)),
		)
	}

	slog.Info("ingest completed",
		slog.Int("queries", len(queries)),
		slog.Int("failed", failed),
		slog.Int("jobs", total),
	)

	if failed == len(queries) {
		return fmt.Errorf("all %d ingest queries failed", failed)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.Migrate(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// services はHTTPハンドラーに渡すドメインサービスの集合。
type services struct {
	users        *user.Service
	catalog      *catalog.Service
	gateway      *aggregator.Gateway
	interactions *interaction.Service
	profiles     *profile.Service
	exporter     *export.Service
	resumes      *resume.Service
}

// newServices はリポジトリとドメインサービスを組み立てる。
func newServices(cfg *config.Config, db *sql.DB, mc metrics.MetricsCollector) (*services, error) {
	bucket, err := storage.NewFSBucket(cfg.StorageDir, cfg.StorageBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage bucket: %w", err)
	}

	ssrfGuard := security.NewSSRFGuard()

	userSvc := user.NewService(repository.NewPostgresUserRepo(db), bucket)
	exportSvc := export.NewService(
		security.NewDocumentSanitizer(),
		export.NewChromeRenderer(cfg.ChromePath, cfg.ExportTimeout),
		mc,
	)

	return &services{
		users:        userSvc,
		catalog:      catalog.NewService(repository.NewPostgresJobRepo(db), mc, cfg.CatalogMaxPageSize),
		gateway:      newGateway(cfg, ssrfGuard, mc),
		interactions: interaction.NewService(userSvc, repository.NewPostgresInteractionRepo(db), ssrfGuard, mc),
		profiles:     profile.NewService(userSvc, repository.NewPostgresProfileRepo(db), exportSvc),
		exporter:     exportSvc,
		resumes: resume.NewService(
			userSvc,
			repository.NewPostgresResumeRepo(db),
			repository.NewPostgresTailoredResumeRepo(db),
			bucket,
			cfg.UploadMaxSize,
		),
	}, nil
}

// newGateway は設定された求人ソースから集約ゲートウェイを組み立てる。
// Adzunaは認証情報がある場合のみ有効にする。
func newGateway(cfg *config.Config, ssrfGuard rss.SSRFValidator, mc metrics.MetricsCollector) *aggregator.Gateway {
	var sources []jobsource.Source

	if cfg.AdzunaEnabled() {
		sources = append(sources, adzuna.NewClient(
			&http.Client{Timeout: cfg.SourceTimeout},
			slog.Default(),
			cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry, cfg.AdzunaBaseURL,
		))
	}

	for _, feed := range cfg.FeedSources() {
		sources = append(sources, rss.NewSource(
			feed.Name, feed.URL, ssrfGuard, slog.Default(), cfg.SourceTimeout, cfg.SourceMaxSize,
		))
	}

	return aggregator.NewGateway(sources, mc, slog.Default(), cfg.AggregatorPageSize, cfg.SourceTimeout)
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
