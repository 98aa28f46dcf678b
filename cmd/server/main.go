package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wolfpackcloud/robot-gateway/internal/config"
	"github.com/wolfpackcloud/robot-gateway/internal/database"
	"github.com/wolfpackcloud/robot-gateway/internal/handler"
	"github.com/wolfpackcloud/robot-gateway/internal/jobs"
	"github.com/wolfpackcloud/robot-gateway/internal/middleware"
	"github.com/wolfpackcloud/robot-gateway/internal/redis"
	"github.com/wolfpackcloud/robot-gateway/internal/repository"
	"github.com/wolfpackcloud/robot-gateway/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

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

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	robotRepo := repository.NewRobotRepository(db.DB)
	codeRepo := repository.NewPairCodeRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)

	influxWriter := service.NewInfluxWriter(
		cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket,
		config.SinkWriteTimeout,
	)

	pairingService := service.NewPairingService(
		db, codeRepo, robotRepo,
		cfg.PairCodeTTL(), cfg.APIBaseURL, cfg.MetricsURL(),
	)
	metricsService := service.NewMetricsService(robotRepo, influxWriter)
	robotService := service.NewRobotService(db, robotRepo, codeRepo)

	authMiddleware := middleware.NewAuthMiddleware(userRepo, cfg.JWTSecret)
	pairRateLimit := middleware.NewPairRateLimitMiddleware(redisClient.Client, cfg.PairRateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxIngestBodySize)

	pairingHandler := handler.NewPairingHandler(pairingService, authMiddleware.Handler)
	metricsHandler := handler.NewMetricsHandler(metricsService)
	robotsHandler := handler.NewRobotsHandler(robotService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api/pair", func(r chi.Router) {
		r.Use(pairRateLimit.Handler)
		r.Mount("/", pairingHandler.Routes())
	})

	r.Post("/api/metrics", metricsHandler.Ingest)

	r.Route("/api/robots", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", robotsHandler.Routes())
	})

	livenessJob := jobs.NewLivenessJob(
		robotRepo, config.LivenessSweepInterval, config.InactivityThreshold,
	)
	livenessJob.Start()
	defer livenessJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
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
