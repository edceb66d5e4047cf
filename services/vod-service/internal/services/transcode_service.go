package services

import (
	"context"
	"fmt"
	"time"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// JobLogRepository defines the interface for transcode attempt data access
type JobLogRepository interface {
	NextAttempt(ctx context.Context, mediaID string) (int, error)
	GetByJobID(ctx context.Context, jobID string) (*models.TranscodeJobLog, error)
	Finalize(ctx context.Context, jobID string, status models.TranscodeJobStatus, endedAt time.Time, errMsg string) (bool, error)
}

// MediaStateMachine is the part of the media registry the orchestrator drives
type MediaStateMachine interface {
	GetMedia(ctx context.Context, mediaID string) (*models.Media, error)
	TransitionStatus(ctx context.Context, mediaID string, from, to models.MediaStatus) (bool, error)
	ApplyTranscodeResult(ctx context.Context, mediaID string, result *models.TranscodeResult) (*models.Media, error)
}

// transcodeService closes transcode attempts and applies their outcome
type transcodeService struct {
	jobLogs JobLogRepository
	media   MediaStateMachine
	queue   TranscodeEnqueuer
	logger  *zap.Logger
	now     func() time.Time
}

// NewTranscodeService creates a new transcode orchestrator
func NewTranscodeService(jobLogs JobLogRepository, media MediaStateMachine, queue TranscodeEnqueuer, logger *zap.Logger) *transcodeService {
	return &transcodeService{
		jobLogs: jobLogs,
		media:   media,
		queue:   queue,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleResult moves the media to READY or FAILED and then closes the attempt.
// Redeliveries re-apply the outcome until both the media and the attempt are settled.
func (s *transcodeService) HandleResult(ctx context.Context, result *models.TranscodeResult) error {
	jobLog, err := s.jobLogs.GetByJobID(ctx, result.JobID)
	if err != nil {
		return err
	}
	if jobLog.MediaID != result.MediaID {
		return apperrors.Validation("job %s does not belong to media %s", result.JobID, result.MediaID)
	}
	if jobLog.Status == models.TranscodeJobStatusTimedOut {
		s.logger.Info("ignoring transcode result for timed out attempt", zap.String("job_id", result.JobID))
		return nil
	}

	status := models.TranscodeJobStatusCompleted
	errMsg := ""
	if !result.Succeeded() {
		status = models.TranscodeJobStatusFailed
		errMsg = result.Error
		if errMsg == "" {
			errMsg = "transcode result carried no manifest"
		}
	}

	if jobLog.Status.IsFinal() {
		return s.reapplyClosed(ctx, jobLog, status, result)
	}

	if _, err := s.media.ApplyTranscodeResult(ctx, result.MediaID, result); err != nil {
		return fmt.Errorf("failed to apply transcode result: %w", err)
	}

	closed, err := s.jobLogs.Finalize(ctx, result.JobID, status, s.now(), errMsg)
	if err != nil {
		return fmt.Errorf("failed to close transcode attempt: %w", err)
	}
	if !closed {
		s.logger.Info("transcode attempt closed concurrently", zap.String("job_id", result.JobID))
	}
	return nil
}

// reapplyClosed handles a delivery for an attempt that is already closed. The outcome the
// attempt recorded is applied again when it is the latest attempt of the media.
func (s *transcodeService) reapplyClosed(ctx context.Context, jobLog *models.TranscodeJobLog, status models.TranscodeJobStatus, result *models.TranscodeResult) error {
	if status != jobLog.Status {
		s.logger.Info("ignoring transcode result contradicting closed attempt",
			zap.String("job_id", jobLog.JobID),
			zap.String("job_status", string(jobLog.Status)),
		)
		return nil
	}

	next, err := s.jobLogs.NextAttempt(ctx, jobLog.MediaID)
	if err != nil {
		return err
	}
	if jobLog.Attempt != next-1 {
		s.logger.Info("ignoring transcode result for superseded attempt",
			zap.String("job_id", jobLog.JobID),
			zap.Int("attempt", jobLog.Attempt),
		)
		return nil
	}

	if _, err := s.media.ApplyTranscodeResult(ctx, result.MediaID, result); err != nil {
		return fmt.Errorf("failed to apply transcode result: %w", err)
	}
	return nil
}

// Retry starts a new attempt for a FAILED media
func (s *transcodeService) Retry(ctx context.Context, mediaID string) (*models.TranscodeJobLog, error) {
	media, err := s.media.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if media.Status != models.MediaStatusFailed {
		return nil, apperrors.Conflict("only FAILED media can be retried, media is %s", media.Status)
	}
	if !media.IsVideo() {
		return nil, apperrors.Validation("media %s is not a video", mediaID)
	}

	moved, err := s.media.TransitionStatus(ctx, mediaID, models.MediaStatusFailed, models.MediaStatusProcessing)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, apperrors.Conflict("media %s changed status concurrently", mediaID)
	}
	media.Status = models.MediaStatusProcessing

	jobLog, err := s.queue.Enqueue(ctx, media)
	if err != nil {
		if _, revertErr := s.media.TransitionStatus(ctx, mediaID, models.MediaStatusProcessing, models.MediaStatusFailed); revertErr != nil {
			s.logger.Error("failed to revert media after retry error", zap.String("media_id", mediaID), zap.Error(revertErr))
		}
		return nil, fmt.Errorf("failed to enqueue retry: %w", err)
	}

	s.logger.Info("transcode retried", zap.String("media_id", mediaID), zap.Int("attempt", jobLog.Attempt))
	return jobLog, nil
}
