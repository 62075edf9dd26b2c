package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
	"github.com/flavien-hugs/auth-microservice/internal/transport/http/handlers"
	"github.com/flavien-hugs/auth-microservice/internal/transport/http/middleware"
	"github.com/flavien-hugs/auth-microservice/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth  *usecase.AuthService
	OTP   *usecase.OTPService
	Roles *usecase.RoleService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))

	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")

		authHandler := handlers.NewAuthHandler(deps.Services.Auth)
		authHandler.RegisterRoutes(authGroup, rateLimitChain(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts)...)

		otpHandler := handlers.NewOTPHandler(deps.Config, deps.Services.OTP)
		otpHandler.RegisterRoutes(authGroup, rateLimitChain(deps, "auth_otp_ip", deps.Config.RateLimit.OTPMaxAttempts)...)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.Auth)
		passwordHandler.RegisterRoutes(authGroup, rateLimitChain(deps, "auth_reset_ip", deps.Config.RateLimit.ResetMaxAttempts)...)

		if deps.Services.Roles != nil {
			adminGate := []gin.HandlerFunc{
				middleware.RequireAuth(deps.Services.Auth),
				middleware.RequireAdmin(slug.Make(deps.Config.Auth.DefaultAdminRole)),
			}

			roleHandler := handlers.NewRoleHandler(deps.Services.Roles, deps.Services.Auth)

			rolesGroup := api.Group("/roles")
			rolesGroup.Use(adminGate...)
			roleHandler.RegisterRoutes(rolesGroup)

			usersGroup := api.Group("/users")
			usersGroup.Use(adminGate...)
			roleHandler.RegisterUserRoutes(usersGroup)
		}
	}

	return r
}

func rateLimitChain(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
