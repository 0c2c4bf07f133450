package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/modcenter/internal/api/http"
	"github.com/spec-kit/modcenter/internal/api/http/handlers"
	"github.com/spec-kit/modcenter/internal/auth"
	"github.com/spec-kit/modcenter/internal/cache"
	"github.com/spec-kit/modcenter/internal/config"
	"github.com/spec-kit/modcenter/internal/events"
	"github.com/spec-kit/modcenter/internal/observability"
	"github.com/spec-kit/modcenter/internal/persistence"
	"github.com/spec-kit/modcenter/internal/platform"
	"github.com/spec-kit/modcenter/internal/repository"
	"github.com/spec-kit/modcenter/internal/service"
	"github.com/spec-kit/modcenter/internal/telemetry"
	"github.com/spec-kit/modcenter/internal/worker"
	"github.com/spec-kit/modcenter/migrations"
)

func main() {
	envFiles := pflag.StringSlice("env-file", nil, "dotenv files to load before reading the environment")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	hashSecret := pflag.String("hash-secret", "", "print the bcrypt hash of an API client secret and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFiles...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *hashSecret != "" {
		hash, err := auth.HashSecret(*hashSecret, cfg.Auth.BcryptCost)
		if err != nil {
			log.Fatalf("failed to hash secret: %v", err)
		}
		fmt.Println(hash)
		return
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.App, cfg.Telemetry)
	if err != nil {
		logger.Fatal("failed to init telemetry", zap.Error(err))
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	metrics, err := observability.NewMetrics(telemetry.Meter())
	if err != nil {
		logger.Fatal("failed to init metrics", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations || *migrateOnly {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrations.FS, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	if *migrateOnly {
		logger.Info("migrations applied")
		return
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	eventRepo := repository.NewTicketEventRepository(pool)
	configRepo := repository.NewTicketConfigRepository(pool)
	moderatorRepo := repository.NewModeratorRepository(pool)
	metricsRepo := repository.NewMetricsRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	responseCache := cache.New(redis.Cmdable())
	gateway := platform.New(cfg.Platform, logger)
	dispatcher := events.NewInMemoryDispatcher(logger)

	burnoutDetector := service.NewBurnoutDetector(service.BurnoutDependencies{
		ModeratorRepo: moderatorRepo,
		MetricsRepo:   metricsRepo,
		Thresholds:    cfg.Burnout,
		Dispatcher:    dispatcher,
		Telemetry:     metrics,
		Logger:        logger,
	})
	collector := service.NewMetricsCollector(service.MetricsDependencies{
		MetricsRepo:    metricsRepo,
		AssignmentRepo: assignmentRepo,
		Burnout:        burnoutDetector,
		Logger:         logger,
	})
	engine := service.NewAssignmentEngine(service.AssignmentDependencies{
		ModeratorRepo: moderatorRepo,
		TicketRepo:    ticketRepo,
		Thresholds:    cfg.Burnout,
		Dispatcher:    dispatcher,
		Telemetry:     metrics,
		Logger:        logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:         ticketRepo,
		EventRepo:          eventRepo,
		ConfigRepo:         configRepo,
		ModeratorRepo:      moderatorRepo,
		MetricsCollector:   collector,
		Gateway:            gateway,
		Cache:              responseCache,
		Dispatcher:         dispatcher,
		Telemetry:          metrics,
		Logger:             logger,
		BotUserID:          cfg.Platform.BotUserID,
		ChannelDeleteDelay: cfg.Tickets.ChannelDeleteDelay(),
		ConfigCacheTTL:     time.Duration(cfg.Tickets.GuildConfigCacheTTLSecs) * time.Second,
	})
	auditLogger := service.NewAuditLogger(auditRepo, logger)
	moderatorService := service.NewModeratorService(service.ModeratorDependencies{
		ModeratorRepo:  moderatorRepo,
		TicketRepo:     ticketRepo,
		MetricsRepo:    metricsRepo,
		Collector:      collector,
		Burnout:        burnoutDetector,
		Audit:          auditLogger,
		Cache:          responseCache,
		Logger:         logger,
		LeaderboardTTL: time.Duration(cfg.Tickets.LeaderboardCacheTTLSecs) * time.Second,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, tokens, logger)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	worker.StartAuditWorker(auditLogger, dispatcher)
	sweeper := worker.NewBurnoutSweeper(moderatorRepo, burnoutDetector,
		cfg.Workers.BurnoutSweepInterval(), cfg.Workers.BurnoutSweepConcurrency, logger)
	go sweeper.Run(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, Immutable: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, telemetry.Tracer(), cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
		"postgres": pg,
		"redis":    redis,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, engine),
		Moderators:     handlers.NewModeratorsHandler(moderatorService, collector, burnoutDetector, auditLogger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.ShutdownWithTimeout(10 * time.Second)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
