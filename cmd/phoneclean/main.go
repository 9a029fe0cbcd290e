package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandroruanova/phoneclean-service/internal/api"
	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/artifacts"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/cleaning"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/detection"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/phone"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/phoneclean"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/sessions"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/cache"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/database"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/database/repositories"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/parsers"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/queue"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/storage"
	"github.com/alejandroruanova/phoneclean-service/internal/pkg/config"
	"github.com/alejandroruanova/phoneclean-service/internal/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.Initialize(cfg.Environment)
	cfg.LogConfig()

	policy, err := phone.ParseLengthPolicy(cfg.Cleaning.LengthPolicy)
	if err != nil {
		log.Error("invalid phone length policy", slog.Any("error", err))
		os.Exit(1)
	}

	countryCode, err := phone.ParseCountryCodePolicy(cfg.Cleaning.CountryCodePolicy)
	if err != nil {
		log.Error("invalid country code policy", slog.Any("error", err))
		os.Exit(1)
	}

	files, err := storage.NewLocalStorage(&storage.LocalStorageConfig{BasePath: cfg.TempDir},
		logger.NewServiceLogger("storage"))
	if err != nil {
		log.Error("failed to prepare temp dir", slog.Any("error", err))
		os.Exit(1)
	}

	health := map[string]api.HealthReporter{}
	opts := []phoneclean.Option{phoneclean.WithFileStorage(files)}

	// Session store
	var (
		store       sessions.Store
		redisCache  *cache.RedisCache
		queueClient *queue.AsynqClient
		queueServer *queue.AsynqServer
		scheduler   *queue.ExpiryScheduler
	)
	switch cfg.Session.Backend {
	case config.BackendRedis:
		redisCache, err = cache.NewRedisCache(&cfg.Cache, logger.NewServiceLogger("redis"))
		if err != nil {
			log.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisCache.Close()

		store = cache.NewRedisSessionStore(redisCache, cfg.Session.TTL, cfg.Session.LockWait,
			logger.NewServiceLogger("session_store"))
		health["redis"] = redisCache

		queueClient = queue.NewAsynqClient(&cfg.Queue, logger.NewServiceLogger("queue"))
		defer queueClient.Close()

		scheduler = queue.NewExpiryScheduler(queueClient, logger.NewServiceLogger("expiry"))
		opts = append(opts, phoneclean.WithExpiryScheduler(scheduler))
	default:
		store = sessions.NewMemoryStore(cfg.Session.TTL, cfg.Session.LockWait)
	}

	// Optional run history
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(&cfg.Database, logger.NewServiceLogger("database"))
		if err != nil {
			log.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		if err := db.AutoMigrate(&domain.CleaningRun{}); err != nil {
			log.Error("failed to migrate database", slog.Any("error", err))
			os.Exit(1)
		}

		opts = append(opts, phoneclean.WithRunRecorder(
			repositories.NewCleaningRunRepository(db.DB, logger.NewServiceLogger("cleaning_runs"))))
		health["postgres"] = db
	}

	parserConfig := parsers.DefaultParserConfig()
	parserConfig.MaxFileSize = cfg.MaxFileSizeBytes()

	service := phoneclean.NewService(
		phoneclean.Config{
			SessionTTL:   cfg.Session.TTL,
			CleanTimeout: cfg.Cleaning.Timeout,
			PreviewRows:  cfg.Cleaning.PreviewRows,
		},
		store,
		parsers.NewParserFactory(parserConfig),
		detection.NewDetector(cfg.Cleaning.DetectionSampleSize, cfg.Cleaning.DetectionThreshold),
		cleaning.NewEngine(cleaning.Config{
			Workers:      cfg.Cleaning.Workers,
			ChunkSize:    cleaning.DefaultConfig().ChunkSize,
			PreviewRows:  cfg.Cleaning.PreviewRows,
			LengthPolicy: policy,

			CountryCodePolicy: countryCode,
		}, logger.NewServiceLogger("cleaning")),
		artifacts.NewGenerator(logger.NewServiceLogger("artifacts")),
		logger.NewServiceLogger("phoneclean"),
		opts...,
	)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	go service.RunJanitor(jobCtx, cfg.Session.SweepInterval)

	if scheduler != nil {
		queueServer = queue.NewAsynqServer(&cfg.Queue, logger.NewServiceLogger("worker"))
		queueServer.Handle(queue.TaskTypeSessionExpire,
			queue.NewSessionExpireHandler(service, scheduler, logger.NewServiceLogger("expiry")))
		if err := queueServer.Start(); err != nil {
			log.Error("failed to start expiry worker", slog.Any("error", err))
			os.Exit(1)
		}
	}

	server := api.NewServer(api.ServerConfig{
		Addr:           net.JoinHostPort(cfg.ServerHost, cfg.ServerPort),
		MaxUploadBytes: cfg.MaxFileSizeBytes(),
		Backend:        cfg.Session.Backend,
	}, service, health, logger.NewServiceLogger("http"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("http server stopped", slog.Any("error", err))
		}
	}

	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", slog.Any("error", err))
	}
	if queueServer != nil {
		queueServer.Shutdown()
	}
	log.Info("server stopped")
}
