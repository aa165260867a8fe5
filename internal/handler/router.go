package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mahls/lara-auth/internal/middleware"
	"github.com/mahls/lara-auth/internal/repository"
)

// Recorder はルーター全体で使うメトリクス記録のインターフェース。
type Recorder interface {
	middleware.HTTPRecorder
	middleware.CSRFRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 認証
	AuthService     AuthServiceInterface
	SessionResolver middleware.SessionResolver
	Cookie          middleware.CookieConfig

	// ミドルウェア依存
	CORSAllowedOrigin string
	Logger            *slog.Logger

	// 監視（nilの場合はメトリクスを無効化する）
	Recorder       Recorder
	MetricsHandler http.Handler
	HealthChecks   map[string]repository.Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → SecurityHeaders → CORS → Metrics → AuthContext → Logging
//
// 状態を変更するルート（/register, /login, /logout）はCSRFミドルウェアのグループに配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var csrfRecorder middleware.CSRFRecorder
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(chimw.RequestID)
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Recorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Recorder))
		csrfRecorder = deps.Recorder
	}
	r.Use(middleware.NewAuthContextMiddleware(deps.SessionResolver))
	r.Use(middleware.NewLoggingMiddleware(logger))

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookie)
	csrfTokenHandler := middleware.NewCSRFTokenHandler(deps.Cookie)

	// --- CSRFトークン発行 ---
	r.Method(http.MethodGet, "/csrf-cookie", csrfTokenHandler)
	r.Method(http.MethodGet, "/sanctum/csrf-cookie", csrfTokenHandler)

	// --- 状態を変更するルート ---
	// CSRF検証は業務処理より前に行い、失敗時は一切の副作用を起こさない
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(csrfRecorder))

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireSessionMiddleware())

		r.Get("/user", authHandler.CurrentUser)
	})

	// --- 監視 ---
	if deps.HealthChecks != nil {
		r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecks))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}
