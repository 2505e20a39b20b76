package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nesafrica/endorse/internal/metrics"
	"github.com/nesafrica/endorse/internal/middleware"
)

// Pinger はヘルスチェックが必要とするデータベース接続のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	AdminToken        string
	Logger            *slog.Logger

	// サービス
	EndorsementService EndorsementServiceInterface
	AdminService       AdminServiceInterface

	// 運用エンドポイント
	DB       Pinger
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//
// 運用エンドポイント（/health、/metrics）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	endorsementHandler := NewEndorsementHandler(deps.EndorsementService)
	adminHandler := NewAdminHandler(deps.AdminService)

	// --- 運用エンドポイント ---

	r.Get("/health", healthHandler(deps.DB))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 公開ルート ---
	// ミドルウェアスタック: RateLimit(General)、申込のみ専用レート制限を追加
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/endorsements", func(r chi.Router) {
			r.With(deps.RateLimiter.SubmitMiddleware()).Post("/submit", endorsementHandler.Submit)
			r.Get("/submit", endorsementHandler.GetSubmission)

			r.Post("/verify-email", endorsementHandler.VerifyEmail)
			r.Get("/verify-email", endorsementHandler.VerifyEmailLink)

			r.Post("/resend-verification", endorsementHandler.ResendVerification)

			r.Get("/showcase", endorsementHandler.Showcase)
		})

		// --- 管理ルート ---
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewAdminAuthMiddleware(deps.AdminToken))

			r.Get("/endorsements", adminHandler.List)
			r.Post("/endorsements", adminHandler.Action)
			r.Get("/dashboard", adminHandler.Dashboard)
		})
	})

	return r
}

// healthHandler はデータベース疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}

		writeJSONResponse(w, http.StatusOK, map[string]any{
			"status": "ok",
		})
	}
}
