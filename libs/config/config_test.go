package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_USER", "vod")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "vod")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("BLOB_SIGNING_SECRET", "blob-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicBaseURL)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, "blob-secret", cfg.Storage.SigningSecret)
	assert.Equal(t, 15*time.Minute, cfg.Media.UploadURLTTL)
	assert.Equal(t, 10*time.Minute, cfg.Playback.URLTTL)
	assert.Equal(t, 2*time.Hour, cfg.Transcode.SLA)
	assert.Equal(t, 3, cfg.Transcode.MaxAttempts)
	assert.Equal(t, "transcode", cfg.Transcode.Queue)
	assert.Equal(t, "transcode_results", cfg.Transcode.ResultQueue)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Contains(t, cfg.DSN(), "vod:secret@tcp(localhost:3306)/vod?parseTime=true")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name          string
		env           map[string]string
		expectedError string
	}{
		{name: "missing jwt secret", env: map[string]string{"JWT_SECRET": ""}, expectedError: "JWT_SECRET is required"},
		{name: "invalid db port", env: map[string]string{"DB_PORT": "abc"}, expectedError: "invalid DB_PORT"},
		{name: "unknown storage driver", env: map[string]string{"STORAGE_DRIVER": "s3"}, expectedError: "invalid STORAGE_DRIVER"},
		{name: "gcs without bucket", env: map[string]string{"STORAGE_DRIVER": "gcs"}, expectedError: "GCS_BUCKET is required"},
		{name: "invalid ttl", env: map[string]string{"PLAYBACK_URL_TTL": "soon"}, expectedError: "invalid PLAYBACK_URL_TTL"},
		{name: "non positive ttl", env: map[string]string{"PLAYBACK_URL_TTL": "0s"}, expectedError: "PLAYBACK_URL_TTL must be positive"},
		{name: "zero attempts", env: map[string]string{"TRANSCODE_MAX_ATTEMPTS": "0"}, expectedError: "TRANSCODE_MAX_ATTEMPTS must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, parseOrigins(""))
	assert.Equal(t, []string{"*"}, parseOrigins(" , "))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, parseOrigins("https://a.example, https://b.example"))
}
