package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/jobtrail/internal/metrics"
	"github.com/hitoshi/jobtrail/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          middleware.TokenVerifier
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	HSTS              bool
	Logger            *slog.Logger
	Metrics           middleware.StatusRecorder
	Gatherer          prometheus.Gatherer

	// HealthCheck はデータベース等の疎通を確認する。nilの場合は常に正常とする。
	HealthCheck func(ctx context.Context) error

	// ユーザー
	UserService UserServiceInterface

	// 求人
	CatalogService     CatalogServiceInterface
	ExternalJobService ExternalJobServiceInterface

	// 応募状況
	InteractionService InteractionServiceInterface

	// プロフィールと書類
	ProfileService   ProfileServiceInterface
	DocumentExporter DocumentExporterInterface
	ResumeService    ResumeServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → Auth → RateLimit(General)
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	userHandler := NewUserHandler(deps.UserService)
	jobHandler := NewJobHandler(deps.CatalogService, deps.ExternalJobService)
	interactionHandler := NewInteractionHandler(deps.InteractionService)
	profileHandler := NewProfileHandler(deps.ProfileService)
	documentHandler := NewDocumentHandler(deps.DocumentExporter)
	resumeHandler := NewResumeHandler(deps.ResumeService)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler(deps.HealthCheck))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Verifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理
		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.Signup)
			r.Post("/ensure", userHandler.Ensure)
			r.Get("/me", userHandler.Me)
			r.Patch("/me", userHandler.UpdateMe)
			r.Delete("/me", userHandler.DeleteMe)
		})

		// 求人
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobHandler.Search)
			// GET /api/jobs/external - 外部求人検索（検索専用レート制限を追加）
			r.With(deps.RateLimiter.SearchMiddleware()).Get("/external", jobHandler.SearchExternal)
			r.Post("/manual", interactionHandler.CreateManual)
			r.Get("/{id}", jobHandler.Get)
		})

		// 応募状況
		r.Route("/interactions", func(r chi.Router) {
			r.Get("/", interactionHandler.List)
			r.Post("/", interactionHandler.Record)
			r.Get("/counts", interactionHandler.Counts)
			r.Patch("/{id}", interactionHandler.Update)
			r.Delete("/{id}", interactionHandler.Delete)
		})

		// プロフィール
		r.Route("/profile", func(r chi.Router) {
			r.Get("/", profileHandler.Get)
			r.Put("/", profileHandler.Save)
			r.Get("/export", profileHandler.Export)
		})

		// 履歴書
		r.Route("/resumes", func(r chi.Router) {
			r.Get("/", resumeHandler.List)
			r.Post("/", resumeHandler.Upload)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", resumeHandler.Get)
				r.Get("/file", resumeHandler.Download)
				r.Delete("/", resumeHandler.Delete)
			})
		})

		r.Route("/tailored-resumes", func(r chi.Router) {
			r.Get("/", resumeHandler.ListTailored)
			r.Post("/", resumeHandler.UploadTailored)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", resumeHandler.GetTailored)
				r.Get("/file", resumeHandler.DownloadTailored)
				r.Patch("/", resumeHandler.UpdateTailoredLabel)
				r.Delete("/", resumeHandler.DeleteTailored)
			})
		})

		// 書類出力
		r.Post("/documents/export", documentHandler.Export)
	})

	return r
}

// healthHandler はヘルスチェックのハンドラーを返す。
// check が失敗した場合は503を返す。
func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				slog.Error("ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
