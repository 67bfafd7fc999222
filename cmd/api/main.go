package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/supportdesk/ticket-api/internal/api/http"
	"github.com/supportdesk/ticket-api/internal/api/http/handlers"
	"github.com/supportdesk/ticket-api/internal/auth"
	"github.com/supportdesk/ticket-api/internal/config"
	"github.com/supportdesk/ticket-api/internal/events"
	"github.com/supportdesk/ticket-api/internal/mail"
	"github.com/supportdesk/ticket-api/internal/observability"
	"github.com/supportdesk/ticket-api/internal/persistence"
	"github.com/supportdesk/ticket-api/internal/repository"
	"github.com/supportdesk/ticket-api/internal/service"
	"github.com/supportdesk/ticket-api/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)

	var revocations auth.RevocationStore = auth.NoopRevocationStore{}
	healthDeps := map[string]handlers.Pinger{"postgres": pg}
	if redis.Enabled() {
		revocations = auth.NewRedisRevocationStore(redis.Client)
		healthDeps["redis"] = redis
	}

	dispatcher := events.NewInMemoryDispatcher()
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:   userRepo,
		TicketRepo: ticketRepo,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		CommentRepo: commentRepo,
		UserRepo:    userRepo,
		Dispatcher:  dispatcher,
		Statuses:    cfg.Tickets.Statuses,
		Logger:      logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    userRepo,
		Users:       userService,
		Revocations: revocations,
	})
	notificationService := service.NewNotificationService(cfg.Notification, service.NotificationDependencies{
		Dispatcher: dispatcher,
		Mailer:     mail.New(cfg.Mail, logger),
		UserRepo:   userRepo,
		Failures:   metrics,
		Logger:     logger,
	})

	var forwarder worker.EventForwarder
	if cfg.Notification.NatsURL != "" {
		publisher, err := events.NewNatsPublisher(cfg.Notification.NatsURL, cfg.App.Name, logger)
		if err != nil {
			logger.Warn("nats unavailable; ticket events stay in-process", zap.Error(err))
		} else {
			defer publisher.Close() //nolint:errcheck
			forwarder = publisher
		}
	}
	worker.StartNotificationWorker(dispatcher, notificationService, forwarder)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, revocations)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: authMiddleware,
		Metrics:        adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
