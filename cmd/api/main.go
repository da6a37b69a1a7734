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

	httptransport "github.com/spec-kit/storefront-identity/internal/api/http"
	"github.com/spec-kit/storefront-identity/internal/api/http/handlers"
	"github.com/spec-kit/storefront-identity/internal/auth"
	"github.com/spec-kit/storefront-identity/internal/config"
	"github.com/spec-kit/storefront-identity/internal/events"
	"github.com/spec-kit/storefront-identity/internal/observability"
	"github.com/spec-kit/storefront-identity/internal/persistence"
	"github.com/spec-kit/storefront-identity/internal/repository"
	"github.com/spec-kit/storefront-identity/internal/repository/memory"
	"github.com/spec-kit/storefront-identity/internal/service"
	"github.com/spec-kit/storefront-identity/internal/worker"
)

type repositories struct {
	identities  repository.IdentityRepository
	invitations repository.InvitationRepository
	resets      repository.PasswordResetRepository
}

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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(pg, redis, cfg.Redis, logger)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification), logger)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		IdentityRepo:      repos.identities,
		PasswordResetRepo: repos.resets,
		Dispatcher:        dispatcher,
		Logger:            logger,
		Metrics:           metrics,
	})
	invitationService := service.NewInvitationService(*cfg, service.InvitationDependencies{
		InvitationRepo: repos.invitations,
		IdentityRepo:   repos.identities,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Metrics:        metrics,
	})
	adminService := service.NewAdminService(*cfg, service.AdminDependencies{
		IdentityRepo: repos.identities,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.identities)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.IsProduction(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:    cfg.App.RequestTimeout(),
		Production: cfg.App.IsProduction(),
	})

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
		handlers.Dependency{Name: "postgres", Check: pg, Optional: pg.PoolHandle() == nil},
		handlers.Dependency{Name: "redis", Check: redis, Optional: true},
	)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Auth:           handlers.NewAuthHandler(authService, logger),
		Invitations:    handlers.NewInvitationHandler(invitationService),
		Admin:          handlers.NewAdminHandler(adminService),
		AuthMiddleware: authMiddleware,
		RateLimiter:    httptransport.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// buildRepositories falls back to process-local storage when no database is
// configured. Nothing survives a restart in that mode.
func buildRepositories(pg *persistence.Postgres, redis *persistence.Redis, redisCfg config.RedisConfig, logger *zap.Logger) repositories {
	pool := pg.PoolHandle()
	if pool == nil {
		logger.Warn("running with in-memory repositories")
		return repositories{
			identities:  memory.NewIdentityRepository(),
			invitations: memory.NewInvitationRepository(),
			resets:      memory.NewPasswordResetRepository(),
		}
	}

	return repositories{
		identities:  repository.NewIdentityRepository(pool),
		invitations: repository.NewInvitationRepository(pool),
		resets: repository.NewCachedPasswordResetRepository(
			repository.NewPasswordResetRepository(pool),
			redis.Client,
			redisCfg.ResetCacheKeyspace,
			logger,
		),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
