package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hibiken/asynq"
	"github.com/learnhub/backend/libs/config"
	"github.com/learnhub/backend/libs/logger"
	"github.com/learnhub/backend/services/vod-service/internal/alerts"
	"github.com/learnhub/backend/services/vod-service/internal/cache"
	"github.com/learnhub/backend/services/vod-service/internal/repositories"
	"github.com/learnhub/backend/services/vod-service/internal/services"
	"github.com/learnhub/backend/services/vod-service/internal/storage"
	"go.uber.org/zap"
)

const watchdogLockTTL = time.Minute

type blobStore interface {
	services.BlobStore
	io.Closer
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting VOD Service Scheduler")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Requeued jobs go through the same queue as the API
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize blob store", zap.Error(err))
	}
	defer blobs.Close()

	// Initialize repositories and services
	mediaRepo := repositories.NewMediaRepository(db)
	jobLogRepo := repositories.NewTranscodeJobLogRepository(db)
	sessionRepo := repositories.NewPlaybackSessionRepository(db)

	transcodeQueue := services.NewTranscodeQueue(jobLogRepo, asynqClient, cfg.Transcode.Queue, logger.Logger)
	mediaService := services.NewMediaService(mediaRepo, jobLogRepo, blobs, cache.NewMediaCache(rdb, cfg.Media.CacheTTL),
		transcodeQueue, cfg.Media.UploadURLTTL, logger.Logger)

	mailer := alerts.NewMailer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
		cfg.SMTP.From,
		cfg.AlertEmail,
		logger.Logger,
	)

	watchdog := services.NewWatchdogService(
		jobLogRepo,
		mediaService,
		transcodeQueue,
		sessionRepo,
		mailer,
		cfg.Transcode.SLA,
		cfg.Transcode.MaxAttempts,
		logger.Logger,
	)

	hostname, _ := os.Hostname()
	sched, err := NewScheduler(watchdog, rdb, cfg.Transcode.WatchdogCron, hostname, watchdogLockTTL, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	sched.Start()

	logger.Logger.Info("Scheduler running",
		zap.String("schedule", cfg.Transcode.WatchdogCron),
		zap.Duration("sla", cfg.Transcode.SLA),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down scheduler...")
	sched.Stop()
	logger.Logger.Info("Scheduler exited")
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobStore, error) {
	if cfg.Storage.Driver == config.StorageDriverGCS {
		return storage.NewGCSGateway(ctx, cfg.Storage.GCSBucket, cfg.Storage.GCSCredentialsFile, logger.Logger)
	}
	return storage.NewLocalGateway(cfg.Storage.LocalPath, cfg.Server.PublicBaseURL+"/api/v1/blobs", cfg.Storage.SigningSecret), nil
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
