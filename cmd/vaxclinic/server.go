package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/vaxclinic/vaxclinic/internal/config"
	"github.com/vaxclinic/vaxclinic/internal/domain/dashboard"
	"github.com/vaxclinic/vaxclinic/internal/domain/identity"
	"github.com/vaxclinic/vaxclinic/internal/domain/immunization"
	"github.com/vaxclinic/vaxclinic/internal/domain/inventory"
	"github.com/vaxclinic/vaxclinic/internal/domain/scheduling"
	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/auth"
	"github.com/vaxclinic/vaxclinic/internal/platform/db"
	"github.com/vaxclinic/vaxclinic/internal/platform/events"
	"github.com/vaxclinic/vaxclinic/internal/platform/middleware"
	"github.com/vaxclinic/vaxclinic/internal/platform/reporting"
	"github.com/vaxclinic/vaxclinic/internal/platform/validate"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// authStack is the identity collaborator and the middleware guarding /api/v1.
type authStack struct {
	provider auth.Provider
	closers  []func() error
}

func (a *authStack) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// buildAuth constructs the identity provider for the configured mode. In
// development without REDIS_URL an in-process Redis holds the sessions.
func buildAuth(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*authStack, error) {
	stack := &authStack{}
	mode := cfg.ResolvedAuthMode()

	if mode == config.AuthModeRemote {
		stack.provider = auth.NewRemoteProvider(auth.RemoteConfig{
			BaseURL:    cfg.AuthURL,
			APIKey:     cfg.AuthAPIKey,
			ServiceKey: cfg.AuthServiceKey,
			JWTSecret:  []byte(cfg.AuthJWTSecret),
		})
		return stack, nil
	}

	redisURL := cfg.RedisURL
	if redisURL == "" && mode == config.AuthModeDevelopment {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start in-process redis: %w", err)
		}
		stack.closers = append(stack.closers, func() error { mr.Close(); return nil })
		redisURL = "redis://" + mr.Addr()
		logger.Warn().Msg("REDIS_URL not set, sessions are kept in an in-process store")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		stack.Close()
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	stack.closers = append(stack.closers, rdb.Close)

	sessions := auth.NewSessionStore(rdb, cfg.SessionTTL)
	stack.provider = auth.NewLocalProvider(auth.NewCredentialStorePG(pool), sessions)
	return stack, nil
}

func buildEvents(cfg *config.Config, logger zerolog.Logger) (*events.Bus, error) {
	if cfg.AMQPURL == "" {
		logger.Info().Msg("AMQP_URL not set, domain events are discarded")
		return events.NewBus(events.NopPublisher{}, logger), nil
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, err
	}
	return events.NewBus(pub, logger), nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	clinic := config.DefaultClinic()

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")
	tx := db.NewTxRunner(pool)

	authn, err := buildAuth(cfg, pool, logger)
	if err != nil {
		return err
	}
	defer authn.Close()

	bus, err := buildEvents(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to message broker")
		return err
	}
	defer bus.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(e)
	e.Validator = validate.New()

	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.DevRoleHeader, auth.DevRecordHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(requestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Services
	identitySvc := identity.NewService(
		identity.NewPatientRepo(pool),
		identity.NewVaccinatorRepo(pool),
		identity.NewAccountRepo(pool),
		authn.provider, tx, clinic, logger,
	)
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepo(pool), identitySvc, bus, logger)
	inventorySvc := inventory.NewService(inventory.NewRepo(pool), logger)
	immunizationSvc := immunization.NewService(
		immunization.NewRecordRepo(pool),
		inventorySvc, schedulingSvc, identitySvc,
		tx, bus, clinic, logger,
	)
	dashboardSvc := dashboard.NewService(dashboard.NewSource(pool), clinic, logger)

	// API groups
	public := e.Group("/api/v1", middleware.RateLimit(rl))
	api := e.Group("/api/v1")
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth: every request is an admin unless X-Dev-Role says otherwise")
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.SessionMiddleware(authn.provider, identitySvc.Resolver()))
	}
	api.Use(middleware.RateLimit(rl))
	api.Use(middleware.Audit(logger))

	identity.NewHandler(identitySvc).RegisterRoutes(public, api)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)
	inventory.NewHandler(inventorySvc).RegisterRoutes(api)
	immunization.NewHandler(immunizationSvc).RegisterRoutes(api)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(api)
	reporting.NewHandler(
		reporting.NewEvaluator(pool),
		reporting.NewExportSource(pool),
		clinic, logger,
	).RegisterRoutes(api)

	// Graceful shutdown
	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errc:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
