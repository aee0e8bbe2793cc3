package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/shopfront/internal/auth"
	"github.com/hitoshi/shopfront/internal/cart"
	"github.com/hitoshi/shopfront/internal/catalog"
	"github.com/hitoshi/shopfront/internal/checkout"
	"github.com/hitoshi/shopfront/internal/commerce"
	"github.com/hitoshi/shopfront/internal/config"
	"github.com/hitoshi/shopfront/internal/database"
	"github.com/hitoshi/shopfront/internal/handler"
	"github.com/hitoshi/shopfront/internal/hostedauth"
	"github.com/hitoshi/shopfront/internal/imageproxy"
	"github.com/hitoshi/shopfront/internal/logger"
	"github.com/hitoshi/shopfront/internal/metrics"
	"github.com/hitoshi/shopfront/internal/middleware"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/order"
	"github.com/hitoshi/shopfront/internal/repository"
	"github.com/hitoshi/shopfront/internal/security"
	"github.com/hitoshi/shopfront/internal/worker/cleanup"
	syncworker "github.com/hitoshi/shopfront/internal/worker/sync"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// buildProviders は外部プロバイダークライアントと認証プロバイダーを構築する。
func buildProviders(cfg *config.Config, collector metrics.MetricsCollector) (*commerce.Client, []auth.Provider) {
	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	commerceClient := commerce.NewClient(
		httpClient, slog.Default(), collector,
		cfg.CommerceAPIURL, cfg.CommercePublishableKey,
	)
	hostedClient := hostedauth.NewClient(
		httpClient, slog.Default(), collector,
		cfg.HostedAuthURL, cfg.HostedAuthAPIKey, cfg.HostedAuthJWTSecret,
	)

	providers := []auth.Provider{
		auth.NewCommerceProvider(commerceClient),
		auth.NewHostedProvider(hostedClient),
	}
	return commerceClient, providers
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	cartRepo := repository.NewPostgresCartRepo(db)
	syncRepo := repository.NewPostgresProfileSyncRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 外部プロバイダークライアントの初期化
	commerceClient, providers := buildProviders(cfg, collector)

	// 5. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 6. ドメインサービスの初期化
	authService := auth.NewService(
		providers, userRepo, identRepo, sessionRepo, syncRepo, collector,
		auth.ServiceConfig{
			SessionMaxAge:   cfg.SessionMaxAge,
			DefaultProvider: cfg.DefaultProvider,
		},
	)
	catalogService := catalog.NewService(commerceClient, sanitizer)
	cartService := cart.NewService(commerceClient, cartRepo, collector)
	orderService := order.NewService(commerceClient, identRepo)
	checkoutService := checkout.NewService(commerceClient, cartService)
	imageFetcher := imageproxy.NewFetcher(ssrfGuard, cfg.ImageMaxSize)

	// 7. ルーターの構築
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.LoginRate = rate.Limit(float64(cfg.RateLimitLogin) / 60.0)
	rateLimiterCfg.LoginBurst = cfg.RateLimitLogin

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	}

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig:        csrfConfig,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		Logger:            slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		CatalogService:  catalogService,
		CartService:     cartService,
		OrderService:    orderService,
		CheckoutService: checkoutService,
		ImageFetcher:    imageFetcher,

		MetricsHandler: metrics.Handler(registry),
		HealthHandler:  handler.NewHealthHandler(db),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、プロファイル同期ワーカーとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	syncRepo := repository.NewPostgresProfileSyncRepo(db)

	// 3. メトリクスの初期化
	// ワーカーはスクレイプエンドポイントを持たないがカウンターの整合のため登録する
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. プロバイダーと同期ワーカーの初期化
	_, providers := buildProviders(cfg, collector)
	providerMap := make(map[model.Provider]auth.Provider, len(providers))
	for _, p := range providers {
		providerMap[p.Name()] = p
	}

	syncer := syncworker.NewSyncer(
		syncRepo, userRepo, identRepo, providerMap,
		collector, slog.Default(), cfg.SyncMaxAttempts,
	)

	// 5. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.SyncRetentionDays = cfg.SyncRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sync_interval", cfg.SyncBatchInterval),
		slog.Int("sync_max_attempts", cfg.SyncMaxAttempts),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go cleanupJob.Start(ctx, 24*time.Hour)

	// 同期ワーカーをメインgoroutineで実行（ブロッキング）
	syncer.Start(ctx, cfg.SyncBatchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
