package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/issue-tracker/internal/api/http"
	"github.com/spec-kit/issue-tracker/internal/api/http/handlers"
	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/config"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/mail"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/persistence"
	"github.com/spec-kit/issue-tracker/internal/repository"
	"github.com/spec-kit/issue-tracker/internal/service"
	"github.com/spec-kit/issue-tracker/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var queue mail.Queue = mail.NewRedisQueue(redis.Client, cfg.Notification.QueueKey)
	if err := redis.Ping(ctx); err != nil {
		logger.Warn("redis unavailable; notifications are queued in memory", zap.Error(err))
		queue = mail.NewMemoryQueue(256)
	}

	metrics := observability.NewMetrics()

	issueRepo := repository.NewIssueRepository(pool)
	historyRepo := repository.NewIssueHistoryRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	watchRepo := repository.NewWatchRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	directoryRepo := repository.NewDirectoryRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:    dispatcher,
		WatchRepo:     watchRepo,
		Queue:         queue,
		Metrics:       metrics,
		Logger:        logger,
		BaseURL:       cfg.App.BaseURL,
		FanoutTimeout: cfg.Notification.FanoutTimeout(),
	}).RegisterHandlers()

	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:     issueRepo,
		CommentRepo:   commentRepo,
		HistoryRepo:   historyRepo,
		WatchRepo:     watchRepo,
		UserRepo:      userRepo,
		DirectoryRepo: directoryRepo,
		Tx:            persistence.NewTxManager(pool),
		Dispatcher:    dispatcher,
		Logger:        logger,
	})

	renderer, err := mail.NewRenderer()
	if err != nil {
		logger.Fatal("failed to load mail templates", zap.Error(err))
	}
	retry := worker.RetryPolicy{}
	if cfg.Notification.MaxRetries > 0 {
		retry.MaxRetries = uint64(cfg.Notification.MaxRetries)
	}
	notifier := worker.NewNotificationWorker(queue, renderer, mail.NewSender(cfg.Notification, logger), metrics, logger, cfg.Notification.Workers, retry)
	go func() {
		if err := notifier.Run(ctx); err != nil {
			logger.Error("notification worker stopped", zap.Error(err))
		}
	}()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Issues:         handlers.NewIssuesHandler(issueService),
		AuthMiddleware: authMiddleware.Handle,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
