package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/flavien-hugs/auth-microservice/internal/core/port"
	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
	"github.com/flavien-hugs/auth-microservice/internal/infra/database"
	kafkainfra "github.com/flavien-hugs/auth-microservice/internal/infra/kafka"
	"github.com/flavien-hugs/auth-microservice/internal/infra/logger"
	redisinfra "github.com/flavien-hugs/auth-microservice/internal/infra/redis"
	"github.com/flavien-hugs/auth-microservice/internal/infra/security"
	"github.com/flavien-hugs/auth-microservice/internal/infra/telemetry"
	postgresrepo "github.com/flavien-hugs/auth-microservice/internal/repository/postgres"
	redisrepo "github.com/flavien-hugs/auth-microservice/internal/repository/redis"
	"github.com/flavien-hugs/auth-microservice/internal/transport/http/middleware"
	"github.com/flavien-hugs/auth-microservice/internal/transport/http/routes"
	"github.com/flavien-hugs/auth-microservice/internal/usecase"
)

// Application owns every long-lived resource of the service.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

// New wires configuration, infrastructure, repositories, services, and the
// HTTP engine. Failures release whatever was already acquired.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	provider, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	signer, err := security.NewSigner(cfg.JWT.Secret, cfg.JWT.Algorithm)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init signer: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	revocationTTL := maxDuration(cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	if revocationTTL <= 0 {
		revocationTTL = 24 * time.Hour
	}
	revocations := redisrepo.NewRevocationStore(redisClient.Client(), cfg.Redis.RevocationPrefix, revocationTTL)
	permissionCache := redisrepo.NewPermissionCache(redisClient.Client(), cfg.Cache.KeyPrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Cache.KeyPrefix + ":rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	var producer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	validator := security.DefaultPasswordValidator()
	generator := security.NewOTPGenerator(cfg.OTP.Digits, cfg.OTP.Interval)

	tokens := usecase.NewTokenService(cfg, signer, revocations, permissionCache, log)
	resolver := usecase.NewPermissionResolver(cfg, repos.Roles, permissionCache, log)
	resolver.WithCacheObserver(provider.ObserveCacheLookup)
	devices := usecase.NewDeviceGuard(repos.Principals, log)
	otp := usecase.NewOTPService(cfg, repos.Principals, generator, validator, eventPublisher, log)
	auth := usecase.NewAuthService(cfg, repos.Principals, repos.Roles, tokens, resolver, devices, otp, validator, eventPublisher, log)
	roleService := usecase.NewRoleService(cfg, repos.Roles, resolver, log)

	if _, err := roleService.EnsureDefaultAdminRole(ctx, nil); err != nil {
		log.Warn("default admin role bootstrap failed", zap.Error(err))
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:  auth,
			OTP:   otp,
			Roles: roleService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		tracer:   tracer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down cleanly.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			_ = a.tracer.Shutdown(context.Background())
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func maxDuration(values ...time.Duration) time.Duration {
	var longest time.Duration
	for _, v := range values {
		if v > longest {
			longest = v
		}
	}
	return longest
}
