package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/subscription-service/internal/api/http"
	"github.com/spec-kit/subscription-service/internal/api/http/handlers"
	"github.com/spec-kit/subscription-service/internal/config"
	"github.com/spec-kit/subscription-service/internal/events"
	"github.com/spec-kit/subscription-service/internal/observability"
	"github.com/spec-kit/subscription-service/internal/persistence"
	"github.com/spec-kit/subscription-service/internal/repository"
	"github.com/spec-kit/subscription-service/internal/service"
	"github.com/spec-kit/subscription-service/internal/worker"
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

	pool := pg.PoolHandle()
	metrics := observability.NewMetrics()
	dispatcher := events.NewMemoryDispatcher()
	listingCache := repository.NewListingCache(redis.ClientHandle(), cfg.Subscription.ListingCacheTTL(), logger)

	subscriptionService := service.NewSubscriptionService(service.SubscriptionDependencies{
		GroupRepo:      repository.NewSubscriptionGroupRepository(pool),
		SegmentRepo:    repository.NewSegmentRepository(pool),
		AssignmentRepo: repository.NewSegmentAssignmentRepository(pool),
		SecretRepo:     repository.NewSecretRepository(pool),
		ChannelRepo:    repository.NewChannelRepository(pool),
		PropertyRepo:   repository.NewUserPropertyRepository(pool),
		EventRepo:      repository.NewUserEventRepository(pool),
		Cache:          listingCache,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
		ManagePath:     cfg.Subscription.ManagePath,
	})

	worker.StartCacheInvalidator(dispatcher, listingCache, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	subscriptionsHandler := handlers.NewSubscriptionsHandler(subscriptionService, logger)
	groupsHandler := handlers.NewSubscriptionGroupsHandler(subscriptionService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        healthHandler,
		Subscriptions: subscriptionsHandler,
		Groups:        groupsHandler,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
