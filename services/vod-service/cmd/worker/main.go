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
	"github.com/learnhub/backend/services/vod-service/internal/cache"
	"github.com/learnhub/backend/services/vod-service/internal/repositories"
	"github.com/learnhub/backend/services/vod-service/internal/services"
	"github.com/learnhub/backend/services/vod-service/internal/storage"
	"go.uber.org/zap"
)

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

	logger.Logger.Info("Starting VOD Service Worker")

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

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Retries re-enqueue transcode jobs
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize blob store", zap.Error(err))
	}
	defer blobs.Close()

	// Initialize repositories and services
	mediaRepo := repositories.NewMediaRepository(db)
	jobLogRepo := repositories.NewTranscodeJobLogRepository(db)

	transcodeQueue := services.NewTranscodeQueue(jobLogRepo, asynqClient, cfg.Transcode.Queue, logger.Logger)
	mediaService := services.NewMediaService(mediaRepo, jobLogRepo, blobs, cache.NewMediaCache(rdb, cfg.Media.CacheTTL),
		transcodeQueue, cfg.Media.UploadURLTTL, logger.Logger)
	transcodeService := services.NewTranscodeService(jobLogRepo, mediaService, transcodeQueue, logger.Logger)

	// Create Asynq server
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Queues: map[string]int{
			cfg.Transcode.ResultQueue: 1,
		},
	})

	worker := NewWorker(logger.Logger, transcodeService)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(services.TaskTypeTranscodeResult, worker.HandleTranscodeResult)

	go func() {
		if err := srv.Run(mux); err != nil {
			logger.Logger.Fatal("Failed to start worker", zap.Error(err))
		}
	}()

	logger.Logger.Info("Worker started", zap.String("queue", cfg.Transcode.ResultQueue))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down worker...")
	srv.Shutdown()
	logger.Logger.Info("Worker exited")
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

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
