package cmd

import (
	"context"
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-plans/app/broadcast"
	"github.com/vibast-solutions/ms-go-plans/app/cache"
	"github.com/vibast-solutions/ms-go-plans/app/entity"
	"github.com/vibast-solutions/ms-go-plans/app/erp"
	"github.com/vibast-solutions/ms-go-plans/app/factory"
	"github.com/vibast-solutions/ms-go-plans/app/mapper"
	"github.com/vibast-solutions/ms-go-plans/app/repository"
	"github.com/vibast-solutions/ms-go-plans/app/service"
	"github.com/vibast-solutions/ms-go-plans/config"

	_ "github.com/go-sql-driver/mysql"
)

type plansRuntime struct {
	cfg            *config.Config
	erpClient      *erp.Client
	plansService   *service.PlansService
	webhookService *service.WebhookService
	bus            *broadcast.RedisInvalidationBus
}

// newPlansRuntime wires the plans service. MySQL and Redis are optional and a
// failure to reach either only disables the feature they back.
func newPlansRuntime(ctx context.Context, cfg *config.Config) (*plansRuntime, func()) {
	erpClient := erp.NewClient(cfg.ERP)
	if !erpClient.Configured() {
		logrus.Warn("ERP_API_BASE_URL is not set, serving fallback plans only")
	}

	plansService := service.NewPlansService(
		erpClient,
		mapper.NewPlanNormalizer(cfg.Plans.SplitConcatenatedFeature),
		cache.NewPlansCache(),
		loadFallbackPlans(ctx, cfg.MySQL),
		cfg.Plans,
	)
	if cfg.ERP.WebhookSecret == "" {
		logrus.Warn("ERP_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}

	rt := &plansRuntime{
		cfg:            cfg,
		erpClient:      erpClient,
		plansService:   plansService,
		webhookService: service.NewWebhookService(cfg.ERP.WebhookSecret, plansService),
	}

	cleanup := func() {}
	if client := connectRedis(ctx, cfg.Redis); client != nil {
		rt.bus = broadcast.NewRedisInvalidationBus(client, cfg.Redis.InvalidationChannel)
		plansService.SetInvalidationPublisher(rt.bus)
		cleanup = func() {
			if err := client.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		}
	}

	return rt, cleanup
}

func loadFallbackPlans(ctx context.Context, cfg config.MySQLConfig) []entity.Plan {
	logger := factory.NewModuleLogger("fallback-plans")
	if cfg.DSN == "" {
		return service.DefaultFallbackPlans()
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		logger.WithError(err).Warn("Failed to open database, using bundled fallback plans")
		return service.DefaultFallbackPlans()
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ping database, using bundled fallback plans")
		return service.DefaultFallbackPlans()
	}

	return service.LoadFallbackPlans(ctx, repository.NewFallbackPlanRepository(db), logger)
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}

	client, err := broadcast.NewRedisClient(ctx, cfg)
	if err != nil {
		logrus.WithError(err).WithField("addr", cfg.Addr).Warn("Redis unavailable, invalidations stay local")
		return nil
	}
	logrus.WithField("channel", cfg.InvalidationChannel).Info("Redis invalidation bus connected")
	return client
}

// newAdminAuthMiddleware guards the admin routes with the internal auth
// service. Without AUTH_SERVICE_GRPC_ADDR it returns no middleware.
func newAdminAuthMiddleware(ctx context.Context, cfg *config.Config) ([]echo.MiddlewareFunc, func()) {
	if cfg.InternalEndpoints.AuthGRPCAddr == "" {
		logrus.Warn("AUTH_SERVICE_GRPC_ADDR is not set, /plans/status is unauthenticated")
		return nil, func() {}
	}

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(ctx, cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)

	cleanup := func() { authGRPCClient.Close() }
	return []echo.MiddlewareFunc{echoInternalAuthMiddleware.RequireInternalAccess(cfg.App.ServiceName)}, cleanup
}
