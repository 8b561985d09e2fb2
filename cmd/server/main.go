package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/customer-portal-go/internal/access"
	"github.com/openclaw/customer-portal-go/internal/config"
	"github.com/openclaw/customer-portal-go/internal/database"
	"github.com/openclaw/customer-portal-go/internal/handler"
	"github.com/openclaw/customer-portal-go/internal/jobs"
	"github.com/openclaw/customer-portal-go/internal/metrics"
	"github.com/openclaw/customer-portal-go/internal/middleware"
	"github.com/openclaw/customer-portal-go/internal/redis"
	"github.com/openclaw/customer-portal-go/internal/repository"
	"github.com/openclaw/customer-portal-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("APP_ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if cfg.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
		log.Info().Msg("schema applied")
	}

	healthChecks := map[string]handler.HealthCheck{"database": db.Ping}

	var limiter middleware.Limiter
	redisCtx, redisCancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	redisClient, err := redis.NewClient(redisCtx, cfg.RedisURL)
	redisCancel()
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using in-memory rate limits")
		limiter = middleware.NewMemoryLimiter()
	} else {
		defer redisClient.Close()
		log.Info().Msg("redis connected")
		limiter = middleware.NewRedisLimiter(redisClient.Client)
		healthChecks["redis"] = redisClient.Healthy
	}

	promMetrics := metrics.NewPrometheus()

	sessionRepo := repository.NewSessionRepository(db.DB)
	store := service.NewStore(db.DB)
	policy := access.NewPolicy(store.Users)

	portalService := service.NewPortalService(db, store, policy, promMetrics)
	authService := service.NewAuthService(store.Identities, sessionRepo, policy, cfg.SessionSecret, cfg.SessionTTL())

	if err := authService.EnsureAdmin(context.Background(), cfg.AdminPasswordHash); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap Administrator identity")
	}

	actorMiddleware := middleware.NewActorMiddleware(authService)
	apiRateLimit := middleware.NewRateLimitMiddleware(limiter, cfg.RateLimitPerMin, config.RateLimitWindow, middleware.ActorOrIPKey)
	loginRateLimit := middleware.NewRateLimitMiddleware(limiter, config.LoginMaxAttempts, config.LoginWindow, middleware.IPKey("login"))
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	portalHandler := handler.NewPortalHandler(portalService)
	authHandler := handler.NewAuthHandler(authService, cfg.SessionTTL(), isProduction)
	healthHandler := handler.NewHealthHandler(healthChecks)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)

		r.With(loginRateLimit.Handler).Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(actorMiddleware.Handler)
			r.Use(apiRateLimit.Handler)
			r.Use(csrfMiddleware.Handler)

			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Mount("/", portalHandler.Routes())
		})
	})

	cleanupJob := jobs.NewCleanupJob(authService, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	var metricsServer *http.Server
	if addr := cfg.MetricsAddr(); addr != "" {
		metricsServer = newMetricsServer(addr, promMetrics.Handler())
		go func() {
			log.Info().Str("addr", addr).Msg("starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics server forced to shutdown")
		}
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
