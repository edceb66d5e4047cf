package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/learnhub/backend/libs/auth/middleware"
	"github.com/learnhub/backend/libs/auth/service"
	"github.com/learnhub/backend/libs/config"
	"github.com/learnhub/backend/libs/logger"
	loggerMiddleware "github.com/learnhub/backend/libs/logger/middleware"
	sharedMiddleware "github.com/learnhub/backend/libs/middlewares"
	_ "github.com/learnhub/backend/services/vod-service/docs"
	"github.com/learnhub/backend/services/vod-service/internal/cache"
	"github.com/learnhub/backend/services/vod-service/internal/handlers"
	"github.com/learnhub/backend/services/vod-service/internal/repositories"
	"github.com/learnhub/backend/services/vod-service/internal/services"
	"github.com/learnhub/backend/services/vod-service/internal/storage"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// heartbeatsPerMinute caps heartbeats per session; players report every 10-30s
const heartbeatsPerMinute = 12

// blobStore is a blob gateway that owns a client connection
type blobStore interface {
	services.BlobStore
	io.Closer
}

// @title LearnHub VOD API
// @version 1.0
// @description Media uploads, transcoding, playback authorization and course completion
// @termsOfService http://swagger.io/terms/

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for the transcode worker callback
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
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

	logger.Logger.Info("Starting VOD Service API")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

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

	// Create Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize blob store
	blobs, localBlobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize blob store", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}
	defer blobs.Close()

	tokenValidator := service.NewTokenValidator(cfg.JWT.Secret, cfg.JWT.Leeway)

	// Initialize repositories
	mediaRepo := repositories.NewMediaRepository(db)
	jobLogRepo := repositories.NewTranscodeJobLogRepository(db)
	lessonRepo := repositories.NewLessonRepository(db)
	courseRepo := repositories.NewCourseRepository(db)
	enrollmentRepo := repositories.NewEnrollmentRepository(db)
	progressRepo := repositories.NewCourseProgressRepository(db)
	sessionRepo := repositories.NewPlaybackSessionRepository(db)
	quizRepo := repositories.NewQuizRepository(db)
	assignmentRepo := repositories.NewAssignmentRepository(db)

	// Initialize services
	transcodeQueue := services.NewTranscodeQueue(jobLogRepo, asynqClient, cfg.Transcode.Queue, logger.Logger)
	mediaService := services.NewMediaService(mediaRepo, jobLogRepo, blobs, cache.NewMediaCache(rdb, cfg.Media.CacheTTL),
		transcodeQueue, cfg.Media.UploadURLTTL, logger.Logger)
	transcodeService := services.NewTranscodeService(jobLogRepo, mediaService, transcodeQueue, logger.Logger)
	completionService := services.NewCompletionService(lessonRepo, progressRepo, enrollmentRepo, logger.Logger)
	playbackService := services.NewPlaybackService(lessonRepo, enrollmentRepo, mediaService, sessionRepo, blobs, completionService,
		services.PlaybackConfig{
			URLTTL:        cfg.Playback.URLTTL,
			IdleTimeout:   cfg.Playback.SessionIdleTimeout,
			PublicBaseURL: cfg.Server.PublicBaseURL,
		}, logger.Logger)
	quizService := services.NewQuizService(quizRepo, courseRepo, lessonRepo, enrollmentRepo, completionService, logger.Logger)
	assignmentService := services.NewAssignmentService(assignmentRepo, blobs, courseRepo, lessonRepo, enrollmentRepo,
		completionService, cfg.Media.UploadURLTTL, logger.Logger)
	lessonService := services.NewLessonService(lessonRepo, courseRepo, mediaService, quizRepo, assignmentRepo, logger.Logger)

	// Initialize auth middleware
	authMiddleware := middleware.AuthMiddleware(tokenValidator)
	tutorMiddleware := middleware.RoleMiddleware(tokenValidator, service.RoleTutor)
	adminMiddleware := middleware.RoleMiddleware(tokenValidator, service.RoleAdmin)
	apiKeyMiddleware := middleware.APIKeyMiddleware(cfg.APIKey)
	heartbeatLimit := httprate.Limit(heartbeatsPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint))

	// Initialize handlers
	mediaHandler := handlers.NewMediaHandler(mediaService, transcodeService, logger.Logger)
	playbackHandler := handlers.NewPlaybackHandler(playbackService, heartbeatLimit, logger.Logger)
	quizHandler := handlers.NewQuizHandler(quizService, tutorMiddleware, logger.Logger)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService, tutorMiddleware, logger.Logger)
	lessonHandler := handlers.NewLessonHandler(lessonService, completionService, tutorMiddleware, logger.Logger)

	// Setup router
	r := chi.NewRouter()

	r.Use(sharedMiddleware.RequestIDMiddleware)
	r.Use(loggerMiddleware.LoggerMiddleware(logger.Logger))
	r.Use(sharedMiddleware.RecoveryMiddleware(logger.Logger))
	r.Use(sharedMiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(300, time.Minute))
	// Blob uploads stream straight to storage
	r.Use(sharedMiddleware.RequestSizeLimitMiddleware(10*1024*1024, "/api/v1/blobs/"))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(cfg.Server.PublicBaseURL+"/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Transcode worker callback (API Key protected)
		r.Group(func(r chi.Router) {
			r.Use(apiKeyMiddleware)
			mediaHandler.RegisterInternalRoutes(r)
		})

		// Local blob endpoints carry their own signature
		if localBlobs != nil {
			handlers.NewBlobHandler(localBlobs, logger.Logger).RegisterRoutes(r)
		}

		// Tutor endpoints
		r.Group(func(r chi.Router) {
			r.Use(tutorMiddleware)
			mediaHandler.RegisterRoutes(r)
		})

		// Admin endpoints (Role 3, JWT protected)
		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			mediaHandler.RegisterAdminRoutes(r)
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			playbackHandler.RegisterRoutes(r)
			quizHandler.RegisterRoutes(r)
			assignmentHandler.RegisterRoutes(r)
			lessonHandler.RegisterRoutes(r)
		})
	})

	// Start server. Blob PUTs of large videos need a long read timeout.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// newBlobStore builds the configured gateway. The local gateway is also returned
// separately because its signed URLs are served by this process.
func newBlobStore(ctx context.Context, cfg *config.Config) (blobStore, handlers.LocalBlobGateway, error) {
	if cfg.Storage.Driver == config.StorageDriverGCS {
		gcs, err := storage.NewGCSGateway(ctx, cfg.Storage.GCSBucket, cfg.Storage.GCSCredentialsFile, logger.Logger)
		if err != nil {
			return nil, nil, err
		}
		return gcs, nil, nil
	}

	local := storage.NewLocalGateway(cfg.Storage.LocalPath, cfg.Server.PublicBaseURL+"/api/v1/blobs", cfg.Storage.SigningSecret)
	return local, local, nil
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "vod_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Running from cmd/api
		if _, err := os.Stat("../../migrations"); err == nil {
			migrationPath = "file://../../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(migrationPath, "mysql", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
