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

	httptransport "github.com/spec-kit/locate-service/internal/api/http"
	"github.com/spec-kit/locate-service/internal/api/http/handlers"
	"github.com/spec-kit/locate-service/internal/audit"
	"github.com/spec-kit/locate-service/internal/auth"
	"github.com/spec-kit/locate-service/internal/calendar"
	"github.com/spec-kit/locate-service/internal/config"
	"github.com/spec-kit/locate-service/internal/dispatch"
	"github.com/spec-kit/locate-service/internal/escalation"
	"github.com/spec-kit/locate-service/internal/gateway"
	"github.com/spec-kit/locate-service/internal/observability"
	"github.com/spec-kit/locate-service/internal/persistence"
	"github.com/spec-kit/locate-service/internal/repository"
	"github.com/spec-kit/locate-service/internal/scanner"
	"github.com/spec-kit/locate-service/internal/service"
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	responseRepo := repository.NewResponseRepository(pool)
	subscriberRepo := repository.NewSubscriberRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)
	alertRepo := repository.NewAlertRepository(pool)
	markerRepo := repository.NewMarkerRepository(pool)
	ackRepo := repository.NewAckRepository(pool)
	auditRepo := repository.NewAuditPackRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)
	txManager := repository.NewTxManager(pool)

	holidays := calendar.NewStatutoryHolidays(
		calendar.Jurisdiction(cfg.Regulatory.Jurisdiction),
		cfg.Regulatory.ExtraHolidays,
	)
	businessCalendar := calendar.New(holidays)

	queue := dispatch.NewQueue(cfg.Dispatch.QueueCapacity)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		ResponseRepo: responseRepo,
		Tx:           txManager,
		Calendar:     businessCalendar,
		Regulatory:   cfg.Regulatory,
		Projects:     service.NoProjectContext{},
		Triggers:     queue,
		Logger:       logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		SubscriberRepo:    subscriberRepo,
		PasswordResetRepo: resetRepo,
	})
	subscriptionService := service.NewSubscriptionService(service.SubscriptionDependencies{
		SubscriptionRepo: subscriptionRepo,
		SubscriberRepo:   subscriberRepo,
		AlertRepo:        alertRepo,
		Logger:           logger,
	})

	var notifier gateway.Gateway
	if cfg.Notification.WebhookURL != "" {
		notifier = gateway.NewWebhookGateway(cfg.Notification, logger)
	} else {
		notifier = gateway.NewLogGateway(logger)
	}

	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherDependencies{
		TicketRepo:       ticketRepo,
		SubscriptionRepo: subscriptionRepo,
		SubscriberRepo:   subscriberRepo,
		AlertRepo:        alertRepo,
		MarkerRepo:       markerRepo,
		Gateway:          notifier,
		Limiter:          redis,
		Config:           cfg.Dispatch,
		Logger:           logger,
		Metrics:          metrics,
	})
	tracker := escalation.New(escalation.Dependencies{
		AckRepo:        ackRepo,
		AlertRepo:      alertRepo,
		SubscriberRepo: subscriberRepo,
		Dispatcher:     dispatcher,
		Locker:         redis,
		Config:         cfg.Escalation,
		Logger:         logger,
		Metrics:        metrics,
	})
	dispatcher.SetAckOpener(tracker)

	sweeper := scanner.New(scanner.Dependencies{
		TicketRepo:   ticketRepo,
		ResponseRepo: responseRepo,
		MarkerRepo:   markerRepo,
		Locker:       redis,
		Calendar:     businessCalendar,
		Sink:         queue,
		Config:       cfg.Scanner,
		Logger:       logger,
		Metrics:      metrics,
	})
	auditGenerator := audit.NewGenerator(audit.Dependencies{
		TicketRepo:   ticketRepo,
		ResponseRepo: responseRepo,
		AlertRepo:    alertRepo,
		AckRepo:      ackRepo,
		PackRepo:     auditRepo,
		Config:       cfg.Audit,
		Logger:       logger,
	})

	pool2 := dispatch.NewPool(queue, dispatcher, cfg.Dispatch.Workers, logger)
	go pool2.Run(ctx)
	go sweeper.Run(ctx)
	go tracker.Run(ctx)
	go runExpireLoop(ctx, ticketService, cfg.Scanner.SweepInterval(), logger)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), subscriberRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Alerts:         handlers.NewAlertsHandler(subscriptionService, tracker, ackRepo),
		Subscriptions:  handlers.NewSubscriptionsHandler(subscriptionService),
		Audit:          handlers.NewAuditHandler(auditGenerator),
		AuthMiddleware: authMiddleware,
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

// runExpireLoop transitions tickets past expiration on the sweep cadence.
func runExpireLoop(ctx context.Context, tickets *service.TicketService, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := tickets.ExpireDueTickets(ctx, time.Now())
			if err != nil {
				logger.Error("expire sweep", zap.Error(err))
				continue
			}
			if count > 0 {
				logger.Info("expired tickets", zap.Int("count", count))
			}
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
