package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// ResultHandler applies worker-reported transcode outcomes
type ResultHandler interface {
	// HandleResult finalizes the job attempt and moves the media out of PROCESSING.
	//
	// Duplicate results for an already-final job are no-ops.
	HandleResult(ctx context.Context, result *models.TranscodeResult) error
}

// Worker consumes transcode results from the result queue
type Worker struct {
	logger   *zap.Logger
	results  ResultHandler
	validate *validator.Validate
}

// NewWorker creates a new worker instance
func NewWorker(logger *zap.Logger, results ResultHandler) *Worker {
	return &Worker{
		logger:   logger,
		results:  results,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HandleTranscodeResult handles one "transcode:result" task.
// Payloads that can never apply are not retried.
func (w *Worker) HandleTranscodeResult(ctx context.Context, t *asynq.Task) error {
	var result models.TranscodeResult
	if err := json.Unmarshal(t.Payload(), &result); err != nil {
		w.logger.Error("Malformed transcode result", zap.Error(err))
		return fmt.Errorf("failed to decode transcode result: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.validate.Struct(&result); err != nil {
		w.logger.Error("Invalid transcode result", zap.Error(err), zap.String("job_id", result.JobID))
		return fmt.Errorf("invalid transcode result: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.results.HandleResult(ctx, &result); err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindValidation, apperrors.KindNotFound, apperrors.KindConflict:
			w.logger.Warn("Transcode result rejected", zap.Error(err),
				zap.String("job_id", result.JobID), zap.String("media_id", result.MediaID))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	w.logger.Info("Transcode result applied",
		zap.String("job_id", result.JobID),
		zap.String("media_id", result.MediaID),
		zap.Bool("succeeded", result.Succeeded()),
	)
	return nil
}
