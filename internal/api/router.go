package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/advcontrato/account-service/docs"
	"github.com/advcontrato/account-service/internal/api/handler"
	"github.com/advcontrato/account-service/internal/api/middleware"
	"github.com/advcontrato/account-service/internal/core/ports"
)

const metricsSubsystem = "accounts_http"

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Accounts ports.AccountService
	// Checks are run by the readiness probe, keyed by dependency name.
	Checks                 map[string]handler.DependencyCheck
	AdminJWTSecret         string
	DefaultKeyValidityDays int
	Logger                 zerolog.Logger
	// Registerer and Gatherer default to the prometheus globals when nil.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsSubsystem,
		Registerer: registerer,
		Skipper:    skipInfrastructure,
	}))

	// --- Health probes and tooling (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Account routes ---
	accountHandler := handler.NewAccountHandler(deps.Accounts, deps.DefaultKeyValidityDays)
	adminAuth := middleware.AdminAuth(deps.AdminJWTSecret)

	accounts := e.Group("/v1/accounts")
	accounts.POST("", accountHandler.Register)
	accounts.POST("/activate", accountHandler.Activate)

	accounts.POST("/keys", accountHandler.RegisterWithKey, adminAuth)
	accounts.GET("", accountHandler.List, adminAuth)
	accounts.GET("/exists", accountHandler.Exists, adminAuth)
	accounts.PUT("/:id/key", accountHandler.ResetKey, adminAuth)
	accounts.POST("/:id/deactivate", accountHandler.Deactivate, adminAuth)
	accounts.DELETE("/:id", accountHandler.Delete, adminAuth)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		Skipper:      skipInfrastructure,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil || v.Status >= 500 {
				evt = log.Warn().Err(v.Error)
			}
			evt.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

// skipInfrastructure keeps probes, scrapes and docs out of request logs and
// HTTP metrics.
func skipInfrastructure(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasPrefix(path, "/health") ||
		path == "/metrics" ||
		strings.HasPrefix(path, "/swagger")
}
