package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/slide_review_server/config"
	"github.com/qs3c/slide_review_server/internal/api"
	"github.com/qs3c/slide_review_server/internal/api/handler"
	"github.com/qs3c/slide_review_server/internal/api/middleware"
	"github.com/qs3c/slide_review_server/internal/database"
	"github.com/qs3c/slide_review_server/internal/manifest"
	"github.com/qs3c/slide_review_server/internal/pkg/cron"
	"github.com/qs3c/slide_review_server/internal/pkg/pubsub"
	"github.com/qs3c/slide_review_server/internal/pkg/ratelimit"
	"github.com/qs3c/slide_review_server/internal/pkg/telemetry"
	"github.com/qs3c/slide_review_server/internal/pkg/ws"
	"github.com/qs3c/slide_review_server/internal/repository"
	"github.com/qs3c/slide_review_server/internal/service"
	"github.com/qs3c/slide_review_server/internal/verify"
)

// hubNotifier 未启用 Redis 时直接推送到本进程的事件流
type hubNotifier struct {
	hub *ws.Hub
}

func (n hubNotifier) PublishLifecycle(_ context.Context, msg *pubsub.LifecycleMessage) error {
	return n.hub.SendToSession(msg.SessionID, &ws.Message{Type: msg.Type, Data: msg})
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level := slog.LevelInfo
	if cfg.Server.Mode == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("Tracer shutdown failed", "err", err)
		}
	}()

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close(db)
	slog.Info("Database connected", "driver", cfg.Database.Driver)

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	manifests, err := manifest.NewProvider(&cfg.Manifest)
	if err != nil {
		return fmt.Errorf("manifest provider: %w", err)
	}

	wsHub := ws.NewHub()

	// Redis 可选：跨实例通知与限流
	var (
		rdb      *redis.Client
		notifier service.LifecycleNotifier = hubNotifier{hub: wsHub}
		limiter  middleware.Limiter
	)
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		slog.Info("Redis connected")

		notifier = pubsub.NewPublisher(rdb)
		go func() {
			err := pubsub.NewSubscriber(rdb).Subscribe(ctx, func(msg *pubsub.LifecycleMessage) {
				if err := wsHub.SendToSession(msg.SessionID, &ws.Message{Type: msg.Type, Data: msg}); err != nil {
					slog.Warn("Failed to push lifecycle message", "session_id", msg.SessionID, "err", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Lifecycle subscriber stopped", "err", err)
			}
		}()

		if cfg.RateLimit.Enabled {
			limiter = ratelimit.NewLimiter(rdb, cfg.RateLimit.BatchesPerMinute, time.Minute)
		}
	}

	// 初始化 Repository
	sessionRepo := repository.NewSessionRepository(db)
	eventRepo := repository.NewEventRepository(db)

	// 初始化 Service
	reviewService := service.NewReviewService(sessionRepo, manifests, cfg, service.WithNotifier(notifier))
	ingestService := service.NewIngestService(db, sessionRepo, eventRepo, manifests, cfg)

	// 定时巡检会话完整性
	if cfg.Audit.Enabled {
		auditCron := cron.NewService(verify.NewVerifier(sessionRepo, eventRepo, manifests), cfg.Audit.Interval)
		auditCron.Start()
		defer auditCron.Stop()
	}

	// 初始化 Handler
	streamHandler := handler.NewEventStreamHandler(reviewService, ingestService, wsHub)
	if limiter != nil {
		streamHandler.WithLimiter(limiter, cfg.RateLimit.BatchesPerMinute)
	}

	// 初始化 Router
	router := api.NewRouter(
		handler.NewReviewHandler(reviewService),
		handler.NewEventHandler(ingestService),
		streamHandler,
		handler.NewCatalogHandler(cfg, manifests),
		handler.NewHealthHandler(db, rdb),
		limiter,
		cfg,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown 不管理已劫持的事件流连接
	server.RegisterOnShutdown(wsHub.Close)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		// 进行中的批次回滚后才关闭数据库
		wsHub.Close()
		if err := wsHub.Wait(shutdownCtx); err != nil {
			slog.Warn("Event streams still open at shutdown", "connections", wsHub.ConnectionCount(), "err", err)
		}
		slog.Info("Server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}
