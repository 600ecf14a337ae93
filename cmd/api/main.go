package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/expense-whatsapp/internal/api/http"
	"github.com/spec-kit/expense-whatsapp/internal/api/http/handlers"
	"github.com/spec-kit/expense-whatsapp/internal/auth"
	"github.com/spec-kit/expense-whatsapp/internal/config"
	"github.com/spec-kit/expense-whatsapp/internal/events"
	"github.com/spec-kit/expense-whatsapp/internal/extraction"
	"github.com/spec-kit/expense-whatsapp/internal/gateway"
	"github.com/spec-kit/expense-whatsapp/internal/observability"
	"github.com/spec-kit/expense-whatsapp/internal/persistence"
	"github.com/spec-kit/expense-whatsapp/internal/repository"
	"github.com/spec-kit/expense-whatsapp/internal/service"
	"github.com/spec-kit/expense-whatsapp/internal/worker"
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redis *persistence.Redis
	if cfg.Redis.Addr != "" {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
	}

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	messageRepo := repository.NewMessageRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	identityRepo := repository.NewIdentityRepository(pool)

	locker := persistence.NewSessionLocker(redis, cfg.Worker.LockTTL(), logger)
	whatsapp := gateway.NewWhatsAppClient(cfg.WhatsApp, logger)
	extractor := extraction.NewOpenAIExtractor(cfg.Extraction, logger)

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notify)
	notifications.RegisterHandlers()

	conversations := service.NewConversationService(service.ConversationDependencies{
		MessageRepo:  messageRepo,
		SessionRepo:  sessionRepo,
		TicketRepo:   ticketRepo,
		IdentityRepo: identityRepo,
		Sender:       whatsapp,
		Media:        whatsapp,
		Extractor:    extractor,
		Locker:       locker,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	tokens := auth.NewTokenManager(cfg.Worker.AuthSecret, cfg.Worker.TokenTTL())
	serviceMiddleware := auth.NewServiceAuthMiddleware(tokens)

	// A configured trigger URL points the intake at a remote worker
	// deployment; otherwise messages drain through an in-process queue.
	var messageDispatcher worker.Dispatcher
	var queue *worker.Queue
	if cfg.Worker.TriggerURL != "" {
		messageDispatcher = worker.NewHTTPTrigger(cfg.Worker.TriggerURL, tokens, logger)
	} else {
		queue = worker.NewQueue(conversations, cfg.Worker.QueueSize, cfg.Worker.Concurrency, logger)
		messageDispatcher = queue
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Webhook:           handlers.NewWebhookHandler(cfg.WhatsApp, messageRepo, messageDispatcher, logger),
		Worker:            handlers.NewWorkerHandler(conversations, logger),
		Scan:              handlers.NewScanHandler(extractor, logger),
		ServiceMiddleware: serviceMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	if queue != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer drainCancel()
		if err := queue.Shutdown(drainCtx); err != nil {
			logger.Warn("queue drain timed out", zap.Error(err))
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
