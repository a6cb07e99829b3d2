package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/heredeirxs/internal/middleware"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/navigation"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder
	SessionReader     middleware.SessionReader
	AdminChecker      middleware.AdminChecker
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	Cookies           middleware.CookieConfig

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証・ページ
	AuthService AuthService
	Reconciler  Reconciler
	Renderer    ShellRenderer

	// API
	ProfileService      ProfileService
	MatchService        MatchService
	WeatherService      WeatherService
	LineupService       LineupService
	CountdownService    CountdownService
	NotificationService NotificationService
	DashboardService    DashboardService
	NewsService         NewsService
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェアの実行順序:
//
//	RealIP → Logging → RequestID → Recovery → SecurityHeaders → CORS → ClientKey → CSRF
//
// 認証イベントの配信中に遷移を発行するため、Sessionは常にNavigationの内側に置く。
//
//	ページ:    NavigationPage → Session
//	認証:      NavigationAction → (RateLimit(Login)) / NavigationAPI → Session
//	API:       NavigationAPI → Session → RateLimit(General) → RequireAuth → (RequireAdmin)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Cookies.Secure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 運用エンドポイント（Cookieを発行しない） ---
	if deps.HealthChecker != nil {
		r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	session := middleware.NewSessionMiddleware(deps.SessionReader, deps.Cookies)

	authHandler := NewAuthHandler(deps.AuthService, deps.Reconciler, deps.ProfileService, deps.Cookies)
	pageHandler := NewPageHandler(deps.AuthService, deps.Reconciler, deps.Renderer, deps.Cookies)
	profileHandler := NewProfileHandler(deps.ProfileService)
	matchHandler := NewMatchHandler(deps.MatchService, deps.WeatherService, deps.LineupService, deps.CountdownService)
	notificationHandler := NewNotificationHandler(deps.NotificationService)
	dashboardHandler := NewDashboardHandler(deps.DashboardService, deps.NewsService)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewClientKeyMiddleware(deps.Cookies))
		r.Use(middleware.NewCSRFMiddleware(deps.Cookies))

		// --- 認証 ---
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(navigation.NewActionMiddleware())
				r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
				r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", authHandler.Register)
				r.Post("/logout", authHandler.Logout)
			})

			// 可視状態復帰はトークンのリフレッシュだけを行うため、セッションミドルウェアを通さない
			r.With(navigation.NewAPIMiddleware()).Post("/touch", authHandler.Touch)

			r.Group(func(r chi.Router) {
				r.Use(navigation.NewAPIMiddleware())
				r.Use(session)
				r.Get("/me", authHandler.Me)
				r.Post("/reconcile", authHandler.Reconcile)
			})
		})

		// --- API ---
		r.Route("/api", func(r chi.Router) {
			r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.Cookies).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(navigation.NewAPIMiddleware())
				r.Use(session)
				r.Use(deps.RateLimiter.GeneralMiddleware())
				r.Use(middleware.RequireAuth)

				r.Get("/profile", profileHandler.Get)
				r.Put("/profile", profileHandler.Update)

				r.Get("/dashboard", dashboardHandler.Dashboard)
				r.Get("/news", dashboardHandler.News)
				r.Get("/countdown", matchHandler.Countdown)
				r.Get("/rankings", matchHandler.Rankings)

				r.Route("/matches", func(r chi.Router) {
					r.Get("/", matchHandler.List)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", matchHandler.Get)
						r.Get("/weather", matchHandler.Weather)
						r.Get("/lineup", matchHandler.Lineup)
						r.Put("/lineup", matchHandler.SubmitLineup)
					})
				})

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", notificationHandler.Inbox)
					r.Post("/{id}/read", notificationHandler.MarkRead)
				})

				// 管理パネル: ロールは保存済みプロフィールから判定する
				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.NewRequireAdmin(deps.AdminChecker))

					r.Get("/notifications", notificationHandler.ListSent)
					r.Post("/notifications", notificationHandler.Send)
					r.Delete("/notifications/{id}", notificationHandler.Delete)
					r.Put("/matches/{id}/lineup", matchHandler.PublishLineup)
				})
			})

			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				middleware.WriteErrorResponse(w, http.StatusNotFound,
					model.NewValidationError("path", "Recurso descoñecido."))
			})
		})

		// --- ページ: ルートテーブルに従ってSPAシェルを描画する ---
		r.Group(func(r chi.Router) {
			r.Use(navigation.NewPageMiddleware())
			r.Use(session)
			r.Method(http.MethodGet, "/*", pageHandler)
			r.Method(http.MethodHead, "/*", pageHandler)
		})
	})

	return r
}
