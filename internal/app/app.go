package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mahls/lara-auth/internal/auth"
	"github.com/mahls/lara-auth/internal/config"
	"github.com/mahls/lara-auth/internal/database"
	"github.com/mahls/lara-auth/internal/handler"
	"github.com/mahls/lara-auth/internal/logger"
	"github.com/mahls/lara-auth/internal/metrics"
	"github.com/mahls/lara-auth/internal/middleware"
	"github.com/mahls/lara-auth/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
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
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandPruneSessions:
		return runPruneSessions(cfg)
	default:
		return runServe(cfg)
	}
}

// server はserveモードで構築される依存関係一式。
type server struct {
	handler http.Handler
	stores  *stores
	cleanup *cleanup.CleanupJob
}

// newServer はストアを開き、サービス・ルーター・クリーンアップジョブを組み立てる。
func newServer(ctx context.Context, cfg *config.Config) (*server, error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		HealthChecks:      st.checks,
		Cookie: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.SessionMaxAge,
		},
	}

	var authRecorder auth.Recorder
	var pruneRecorder cleanup.Recorder
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector := metrics.NewCollector(reg)

		authRecorder = collector
		pruneRecorder = collector
		deps.Recorder = collector
		deps.MetricsHandler = metrics.Handler(reg)
	}

	authService := auth.NewService(
		st.users, st.sessions,
		auth.NewBcryptHasher(cfg.BcryptCost),
		authRecorder,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	deps.AuthService = authService
	deps.SessionResolver = authService

	srv := &server{
		handler: handler.NewRouter(deps),
		stores:  st,
	}
	if st.pruner != nil {
		srv.cleanup = cleanup.NewCleanupJob(st.pruner, slog.Default(), pruneRecorder)
	}

	return srv, nil
}

// runServe は認証APIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.stores.Close()

	if srv.cleanup != nil {
		go srv.cleanup.Start(ctx)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runPruneSessions は期限切れセッションを1回削除する。
// RedisはTTLで失効するため何もしない。
func runPruneSessions(cfg *config.Config) error {
	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if st.pruner == nil {
		slog.Info("session store expires entries itself; nothing to prune",
			slog.String("session_store", cfg.SessionStore),
		)
		return nil
	}

	return cleanup.NewCleanupJob(st.pruner, slog.Default(), nil).Run(ctx)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
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
