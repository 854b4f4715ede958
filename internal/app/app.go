// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
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

	"github.com/gpark/shopgate/internal/config"
	"github.com/gpark/shopgate/internal/database"
	"github.com/gpark/shopgate/internal/handler"
	"github.com/gpark/shopgate/internal/logger"
	"github.com/gpark/shopgate/internal/metrics"
	"github.com/gpark/shopgate/internal/middleware"
	"github.com/gpark/shopgate/internal/notification"
	"github.com/gpark/shopgate/internal/order"
	"github.com/gpark/shopgate/internal/payment"
	"github.com/gpark/shopgate/internal/product"
	"github.com/gpark/shopgate/internal/repository"
	"github.com/gpark/shopgate/internal/token"
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
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIゲートウェイサーバーモードで起動する。
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

	// 2. メトリクスの初期化
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 3. トークンサービスと認可ポリシーの初期化
	tokenService := token.NewService(cfg.JWTSecret, cfg.TokenValidity)

	policy, err := middleware.ParseRoutePolicy(cfg.RouteRoles)
	if err != nil {
		return fmt.Errorf("failed to parse route policy: %w", err)
	}

	credentials, err := handler.ParseCredentials(cfg.GatewayUsers)
	if err != nil {
		return fmt.Errorf("failed to parse gateway users: %w", err)
	}

	// 4. 外部サービスクライアントの初期化
	collabHTTPClient := &http.Client{Timeout: cfg.CollaboratorTimeout}
	notifyHTTPClient := &http.Client{Timeout: cfg.NotifyTimeout}

	productClient := product.NewClient(collabHTTPClient, slog.Default(), cfg.ProductServiceURL)
	paymentClient := payment.NewClient(collabHTTPClient, slog.Default(), cfg.PaymentServiceURL)
	notificationClient := notification.NewClient(notifyHTTPClient, slog.Default(), cfg.NotificationServiceURL)

	// 5. リポジトリと注文サービスの初期化
	orderRepo := repository.NewPostgresOrderRepo(db)
	orderService := order.NewService(
		orderRepo, productClient, paymentClient, notificationClient,
		collector, slog.Default(),
	)

	// 6. レートリミッターの初期化
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.RequestsPerMinute = cfg.RateLimitPerMinute
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Collector:         collector,
		RateLimiter:       rateLimiter,
		TokenVerifier:     tokenService,
		RoutePolicy:       policy,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,

		TokenService: tokenService,
		Credentials:  credentials,

		OrderService: orderService,

		DB:       db,
		Gatherer: reg,
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
		slog.Info("API gateway starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API gateway stopped gracefully")
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
