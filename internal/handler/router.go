package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gpark/shopgate/internal/metrics"
	"github.com/gpark/shopgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier
	RoutePolicy       *middleware.RoutePolicy
	CORSAllowedOrigin string

	// 認証
	TokenService TokenServiceInterface
	Credentials  map[string]Credential

	// 注文
	OrderService OrderServiceInterface

	// ヘルスチェックとメトリクス
	DB       Pinger
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → Recovery → Logging → RateLimit → Auth
//
// 認証ルート（/auth/*）とヘルスチェック（/health）はAuthの外に配置する。
// レート制限はログイン試行を含む全リクエストに適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))
	r.Use(deps.RateLimiter.Middleware(deps.Collector))

	authHandler := NewAuthHandler(deps.TokenService, deps.Credentials)
	orderHandler := NewOrderHandler(deps.OrderService)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/validate", authHandler.Validate)
	})

	r.Get("/health", healthHandler.Check)

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.SetupMetricsRoute(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.RoutePolicy, deps.Collector))

		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", orderHandler.GetOrder)
				r.Post("/confirm", orderHandler.ConfirmOrder)
				r.Post("/cancel", orderHandler.CancelOrder)
				r.Post("/refund", orderHandler.RefundOrder)
				r.Patch("/status", orderHandler.UpdateStatus)
			})
		})

		r.Get("/api/users/{id}/orders", orderHandler.ListUserOrders)
	})

	return r
}
