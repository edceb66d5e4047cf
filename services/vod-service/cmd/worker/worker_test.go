package main

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockResultHandler struct {
	err    error
	result *models.TranscodeResult
}

func (m *mockResultHandler) HandleResult(ctx context.Context, result *models.TranscodeResult) error {
	m.result = result
	return m.err
}

func TestWorker_HandleTranscodeResult(t *testing.T) {
	const (
		jobID   = "9a1d3c6e-2b7f-4e8a-9c0d-1f2e3a4b5c6d"
		mediaID = "4b9c1f0e-8d4a-4c55-9e0b-2f6a7d3c1e90"
	)
	valid := `{"jobId":"` + jobID + `","mediaId":"` + mediaID + `","output":{"manifestKey":"media/` + mediaID + `/hls/master.m3u8"}}`

	tests := []struct {
		name          string
		payload       string
		handler       *mockResultHandler
		expectedError bool
		skipRetry     bool
		applied       bool
	}{
		{name: "applied", payload: valid, handler: &mockResultHandler{}, applied: true},
		{name: "malformed json", payload: `{`, handler: &mockResultHandler{}, expectedError: true, skipRetry: true},
		{name: "job id not a uuid", payload: `{"jobId":"x","mediaId":"` + mediaID + `"}`, handler: &mockResultHandler{}, expectedError: true, skipRetry: true},
		{
			name:          "unknown job is dropped",
			payload:       valid,
			handler:       &mockResultHandler{err: apperrors.NotFound("transcode job")},
			expectedError: true,
			skipRetry:     true,
			applied:       true,
		},
		{
			name:          "database error is retried",
			payload:       valid,
			handler:       &mockResultHandler{err: errors.New("connection reset")},
			expectedError: true,
			applied:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorker(zap.NewNop(), tt.handler)

			err := w.HandleTranscodeResult(context.Background(), asynq.NewTask("transcode:result", []byte(tt.payload)))

			if tt.expectedError {
				require.Error(t, err)
				assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
			} else {
				require.NoError(t, err)
			}
			if tt.applied {
				require.NotNil(t, tt.handler.result)
				assert.Equal(t, jobID, tt.handler.result.JobID)
			} else {
				assert.Nil(t, tt.handler.result)
			}
		})
	}
}
