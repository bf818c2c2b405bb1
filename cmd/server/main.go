package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/config"
	"github.com/macromaster/ingest-server-go/internal/database"
	"github.com/macromaster/ingest-server-go/internal/jobs"
	"github.com/macromaster/ingest-server-go/internal/live"
	"github.com/macromaster/ingest-server-go/internal/middleware"
	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/redis"
	"github.com/macromaster/ingest-server-go/internal/repository"
	"github.com/macromaster/ingest-server-go/internal/service"
	"github.com/macromaster/ingest-server-go/internal/telemetry"
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

	setupLogOutput(cfg)
	setLogLevel(cfg.LogLevel)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	cancel()
	log.Info().Str("path", db.Path()).Msg("database ready")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	}

	telemetry.MustRegister()

	sessionRepo := repository.NewSessionRepository(db.DB)
	interactionRepo := repository.NewInteractionRepository(db.DB)
	cacheRepo := repository.NewMetricsCacheRepository(db.DB)
	logRepo := repository.NewSystemLogRepository(db.DB)

	auditLogger := audit.NewLogger(logRepo)

	broker := live.NewBroker(redisClient)
	defer broker.Close()

	metricsService := service.NewMetricsService(interactionRepo, cacheRepo, cfg.MetricsWindow())
	svc := services{
		sessions:     service.NewSessionService(db, sessionRepo, auditLogger),
		interactions: service.NewInteractionService(db, interactionRepo, metricsService, broker, auditLogger),
		metrics:      metricsService,
		maintenance: service.NewMaintenanceService(
			db, interactionRepo, sessionRepo, logRepo, auditLogger, cfg.SystemLogRetention,
		),
		logs: service.NewSystemLogService(logRepo),
	}

	var limiter middleware.Limiter
	if cfg.IngestRateLimitPerMin > 0 {
		if redisClient != nil {
			limiter = middleware.NewRedisRateLimiter(redisClient.Client)
		} else {
			limiter = middleware.NewMemoryRateLimiter()
		}
	}

	r := newRouter(routerDeps{
		services:  svc,
		broker:    broker,
		audit:     auditLogger,
		limiter:   limiter,
		rateLimit: cfg.IngestRateLimitPerMin,
	})

	cleanupJob := jobs.NewCleanupJob(svc.maintenance, cfg.CleanupDaysToKeep, cfg.CleanupInterval())
	cleanupJob.Start()
	defer cleanupJob.Stop()

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

	auditLogger.Info(context.Background(), model.ComponentIngestion, "Data ingestion server started")

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

// setupLogOutput adds a rotating file next to the console writer when
// LOG_FILE is set.
func setupLogOutput(cfg *config.Config) {
	if cfg.LogFile == "" {
		return
	}

	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}

	multi := zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr}, file)
	log.Logger = zerolog.New(multi).With().Timestamp().Logger()
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
