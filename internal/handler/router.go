package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skillswap/internal/metrics"
	"github.com/hitoshi/skillswap/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Resolver           middleware.UserResolver
	CORSAllowedOrigins []string
	CSRFConfig         middleware.CSRFConfig
	RateLimiter        *middleware.RateLimiter
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector

	// 運用エンドポイント（nilの場合は省略またはチェックなし）
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	SwapService     SwapServiceInterface
	FeedbackService FeedbackServiceInterface
	UserService     UserServiceInterface
	AdminService    AdminServiceInterface
	UploadMaxBytes  int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → Session → CSRF → RateLimit(General)
//
// /auth/signup、/auth/login、/auth/logoutはセッション不要。/auth/logout-allはセッションとCSRF検証が必要。
// 公開プロフィール系は任意認証、それ以外の/api/*は認証必須。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{HSTS: deps.CSRFConfig.CookieSecure}))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(logger))

	authHandler := NewAuthHandler(deps.AuthService, deps.UserService, deps.AuthConfig)
	swapHandler := NewSwapHandler(deps.SwapService)
	feedbackHandler := NewFeedbackHandler(deps.FeedbackService)
	userHandler := NewUserHandler(deps.UserService, deps.FeedbackService, deps.UploadMaxBytes)
	adminHandler := NewAdminHandler(deps.AdminService)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(middleware.NewSessionMiddleware(deps.Resolver)).Get("/me", authHandler.Me)
		r.With(
			middleware.NewSessionMiddleware(deps.Resolver),
			middleware.NewCSRFMiddleware(deps.CSRFConfig),
		).Post("/logout-all", authHandler.LogoutAll)
	})

	// --- 任意認証のルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.Resolver))

		r.Get("/api/users/public", userHandler.PublicDirectory)
		r.Get("/api/users/{id}", userHandler.GetProfile)
		r.Get("/api/users/{id}/feedback", userHandler.GetFeedback)
		r.Get("/api/users/{id}/rating", userHandler.GetRating)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Resolver))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/swaps", func(r chi.Router) {
			// POST /api/swaps - スワップ申請（申請専用レート制限を追加）
			r.With(deps.RateLimiter.SwapCreateMiddleware()).Post("/", swapHandler.Create)
			r.Get("/", swapHandler.List)
			r.Get("/{id}", swapHandler.Get)
			r.Patch("/{id}", swapHandler.UpdateStatus)
		})

		r.Route("/api/feedback", func(r chi.Router) {
			r.Post("/", feedbackHandler.Submit)
			r.Get("/given", feedbackHandler.Given)
		})

		r.Put("/api/users/me", userHandler.UpdateMe)
		r.Post("/api/users/me/photo", userHandler.UploadPhoto)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/users", adminHandler.ListUsers)
			r.Put("/users/{id}/ban", adminHandler.SetBanned)
			r.Get("/stats", adminHandler.Stats)
			r.Get("/export/{dataset}", adminHandler.Export)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
