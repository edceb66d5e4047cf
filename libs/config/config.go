// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageDriverGCS   = "gcs"
	StorageDriverLocal = "local"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Logging   LoggingConfig
	CORS      CORSConfig
	JWT       JWTConfig
	SMTP      SMTPConfig
	Storage   StorageConfig
	Media     MediaConfig
	Transcode TranscodeConfig
	Playback  PlaybackConfig
	APIKey    string
	// AlertEmail receives watchdog alerts about transcode jobs that exhausted their attempts
	AlertEmail string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port int
	// PublicBaseURL is the externally reachable origin of the API, used to build manifest and local blob URLs
	PublicBaseURL string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig holds access token verification settings
type JWTConfig struct {
	Secret string
	Leeway time.Duration
}

// SMTPConfig holds SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// StorageConfig selects and configures the blob store
type StorageConfig struct {
	Driver string

	GCSBucket          string
	GCSCredentialsFile string

	LocalPath     string
	SigningSecret string
}

// MediaConfig holds media registry settings
type MediaConfig struct {
	UploadURLTTL time.Duration
	CacheTTL     time.Duration
}

// TranscodeConfig holds transcode orchestration and watchdog settings
type TranscodeConfig struct {
	Queue        string
	// ResultQueue carries worker-reported outcomes back to cmd/worker
	ResultQueue  string
	SLA          time.Duration
	MaxAttempts  int
	WatchdogCron string
}

// PlaybackConfig holds playback authorization settings
type PlaybackConfig struct {
	URLTTL             time.Duration
	SessionIdleTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	if cfg.Database.Host, err = requireString("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Port, err = requireInt("DB_PORT"); err != nil {
		return nil, err
	}
	if cfg.Database.User, err = requireString("DB_USER"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireString("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.DBName, err = requireString("DB_NAME"); err != nil {
		return nil, err
	}

	if cfg.Server.Port, err = intOrDefault("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	cfg.Server.PublicBaseURL = strings.TrimRight(stringOrDefault("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)), "/")

	cfg.Logging.Level = stringOrDefault("LOG_LEVEL", "info")
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	if cfg.JWT.Secret, err = requireString("JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.JWT.Leeway, err = durationOrDefault("JWT_LEEWAY", "30s"); err != nil {
		return nil, err
	}

	// Service-to-service key for the transcode callback
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AlertEmail = os.Getenv("ALERT_EMAIL")

	cfg.Redis.Host = stringOrDefault("REDIS_HOST", "localhost")
	if cfg.Redis.Port, err = intOrDefault("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = intOrDefault("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.SMTP.Host = stringOrDefault("SMTP_HOST", "localhost")
	if cfg.SMTP.Port, err = intOrDefault("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.SMTP.Username = os.Getenv("SMTP_USERNAME")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	cfg.SMTP.From = stringOrDefault("SMTP_FROM", "noreply@learnhub.dev")

	if err := loadStorage(cfg); err != nil {
		return nil, err
	}

	if cfg.Media.UploadURLTTL, err = durationOrDefault("UPLOAD_URL_TTL", "15m"); err != nil {
		return nil, err
	}
	if cfg.Media.CacheTTL, err = durationOrDefault("MEDIA_CACHE_TTL", "5m"); err != nil {
		return nil, err
	}

	cfg.Transcode.Queue = stringOrDefault("TRANSCODE_QUEUE", "transcode")
	cfg.Transcode.ResultQueue = stringOrDefault("TRANSCODE_RESULT_QUEUE", "transcode_results")
	if cfg.Transcode.SLA, err = durationOrDefault("TRANSCODE_SLA", "2h"); err != nil {
		return nil, err
	}
	if cfg.Transcode.MaxAttempts, err = intOrDefault("TRANSCODE_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.Transcode.MaxAttempts < 1 {
		return nil, fmt.Errorf("TRANSCODE_MAX_ATTEMPTS must be at least 1")
	}
	cfg.Transcode.WatchdogCron = stringOrDefault("WATCHDOG_CRON", "*/5 * * * *")

	if cfg.Playback.URLTTL, err = durationOrDefault("PLAYBACK_URL_TTL", "10m"); err != nil {
		return nil, err
	}
	if cfg.Playback.URLTTL <= 0 {
		return nil, fmt.Errorf("PLAYBACK_URL_TTL must be positive")
	}
	if cfg.Playback.SessionIdleTimeout, err = durationOrDefault("SESSION_IDLE_TIMEOUT", "30m"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadStorage(cfg *Config) error {
	cfg.Storage.Driver = strings.ToLower(stringOrDefault("STORAGE_DRIVER", StorageDriverLocal))

	switch cfg.Storage.Driver {
	case StorageDriverGCS:
		bucket, err := requireString("GCS_BUCKET")
		if err != nil {
			return err
		}
		cfg.Storage.GCSBucket = bucket
		// Falls back to application default credentials when empty
		cfg.Storage.GCSCredentialsFile = os.Getenv("GCS_CREDENTIALS_FILE")
	case StorageDriverLocal:
		cfg.Storage.LocalPath = stringOrDefault("LOCAL_BLOB_PATH", "./data/blobs")
		secret, err := requireString("BLOB_SIGNING_SECRET")
		if err != nil {
			return err
		}
		cfg.Storage.SigningSecret = secret
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: expected %q or %q", cfg.Storage.Driver, StorageDriverGCS, StorageDriverLocal)
	}
	return nil
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&multiStatements=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

func requireString(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func requireInt(key string) (int, error) {
	v, err := requireString(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func stringOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationOrDefault(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(stringOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// parseOrigins splits a comma-separated origin list, allowing every origin when the list is empty
func parseOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
