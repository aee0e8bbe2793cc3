package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shopfront/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	AuthService     AuthServiceInterface
	AuthConfig      AuthHandlerConfig
	CatalogService  CatalogServiceInterface
	CartService     CartServiceInterface
	OrderService    OrderServiceInterface
	CheckoutService CheckoutServiceInterface
	ImageFetcher    ImageFetcherInterface

	// 運用エンドポイント
	MetricsHandler http.Handler
	HealthHandler  http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF
//	（認証が必要なルートはさらに Session → RateLimit(General)）
//
// 認証ルート（/auth/login, /auth/register）にはIP単位のログインレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	productHandler := NewProductHandler(deps.CatalogService)
	cartHandler := NewCartHandler(deps.CartService)
	orderHandler := NewOrderHandler(deps.OrderService)
	checkoutHandler := NewCheckoutHandler(deps.CheckoutService)
	imageHandler := NewImageHandler(deps.ImageFetcher)

	// --- 認証不要のルート ---

	if deps.HealthHandler != nil {
		r.Method(http.MethodGet, "/health", deps.HealthHandler)
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// 認証ルート（ログイン・登録はIP単位レート制限付き）
	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", authHandler.Register)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 商品カタログと画像プロキシは未ログインでも閲覧可能
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", productHandler.ListProducts)
		r.Get("/{handle}", productHandler.GetProduct)
	})
	r.Get("/api/images", imageHandler.ProxyImage)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// カート
		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/lines", cartHandler.AddLine)
			r.Put("/lines/{lineKey}", cartHandler.UpdateLine)
			r.Delete("/lines/{lineKey}", cartHandler.RemoveLine)
		})

		// チェックアウト
		r.Route("/api/checkout", func(r chi.Router) {
			r.Post("/details", checkoutHandler.SetDetails)
			r.Post("/payment-sessions", checkoutHandler.CreatePaymentSession)
			r.Post("/complete", checkoutHandler.Complete)
		})

		// 注文履歴
		r.Route("/api/orders", func(r chi.Router) {
			r.Get("/", orderHandler.ListOrders)
			r.Get("/{id}", orderHandler.GetOrder)
		})

		// プロファイル更新
		r.Put("/api/users/me", authHandler.UpdateMe)
	})

	return r
}
