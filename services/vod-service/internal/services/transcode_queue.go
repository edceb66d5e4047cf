package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

const (
	// TaskTypeTranscodeJob is consumed by the external transcode worker
	TaskTypeTranscodeJob = "transcode:job"
	// TaskTypeTranscodeResult is produced by the transcode worker when a job ends
	TaskTypeTranscodeResult = "transcode:result"
)

// TaskEnqueuer is the part of asynq.Client used to publish transcode jobs
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobLogWriter records transcode attempts
type JobLogWriter interface {
	NextAttempt(ctx context.Context, mediaID string) (int, error)
	Create(ctx context.Context, log *models.TranscodeJobLog) error
	Finalize(ctx context.Context, jobID string, status models.TranscodeJobStatus, endedAt time.Time, errMsg string) (bool, error)
}

// transcodeQueue publishes transcode jobs. It never waits for transcoding.
type transcodeQueue struct {
	jobLogs   JobLogWriter
	client    TaskEnqueuer
	queueName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewTranscodeQueue creates a new transcode job publisher
func NewTranscodeQueue(jobLogs JobLogWriter, client TaskEnqueuer, queueName string, logger *zap.Logger) *transcodeQueue {
	return &transcodeQueue{
		jobLogs:   jobLogs,
		client:    client,
		queueName: queueName,
		logger:    logger,
		now:       time.Now,
	}
}

// Enqueue records a QUEUED attempt and publishes the job. If publishing fails the attempt is closed as FAILED.
func (q *transcodeQueue) Enqueue(ctx context.Context, media *models.Media) (*models.TranscodeJobLog, error) {
	attempt, err := q.jobLogs.NextAttempt(ctx, media.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute attempt number: %w", err)
	}

	jobLog := &models.TranscodeJobLog{
		MediaID:   media.ID,
		JobID:     uuid.NewString(),
		Attempt:   attempt,
		Status:    models.TranscodeJobStatusQueued,
		StartedAt: q.now(),
	}
	if err := q.jobLogs.Create(ctx, jobLog); err != nil {
		return nil, fmt.Errorf("failed to record transcode attempt: %w", err)
	}

	payload, err := json.Marshal(models.TranscodeJobPayload{
		JobID:        jobLog.JobID,
		MediaID:      media.ID,
		StorageKey:   media.StorageKey,
		MimeType:     media.MimeType,
		OutputPrefix: media.OutputPrefix(),
		Attempt:      attempt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcode payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeTranscodeJob, payload)
	_, err = q.client.EnqueueContext(ctx, task, asynq.Queue(q.queueName), asynq.TaskID(jobLog.JobID))
	if err != nil {
		if _, finErr := q.jobLogs.Finalize(ctx, jobLog.JobID, models.TranscodeJobStatusFailed, q.now(), "enqueue failed: "+err.Error()); finErr != nil {
			q.logger.Error("failed to close attempt after enqueue error", zap.String("job_id", jobLog.JobID), zap.Error(finErr))
		}
		return nil, fmt.Errorf("failed to enqueue transcode task: %w", err)
	}

	q.logger.Info("transcode job enqueued",
		zap.String("media_id", media.ID),
		zap.String("job_id", jobLog.JobID),
		zap.Int("attempt", attempt),
		zap.String("queue", q.queueName),
	)
	return jobLog, nil
}
