package services

import (
	"context"
	"fmt"
	"time"

	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

const stuckJobBatchSize = 100

// StuckJobFinder lists and closes attempts that outlived the SLA
type StuckJobFinder interface {
	ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]models.StuckJob, error)
	ListOrphaned(ctx context.Context, cutoff time.Time, limit int) ([]models.StuckJob, error)
	Finalize(ctx context.Context, jobID string, status models.TranscodeJobStatus, endedAt time.Time, errMsg string) (bool, error)
}

// SessionExpirer closes idle playback sessions
type SessionExpirer interface {
	ExpireIdle(ctx context.Context, now time.Time) (int64, error)
}

// Alerter notifies operators
type Alerter interface {
	SendAlert(ctx context.Context, subject, body string) error
}

// SweepReport summarizes one watchdog pass
type SweepReport struct {
	TimedOut int
	Orphaned int
	Requeued int
	Failed   int
}

type watchdogService struct {
	jobs        StuckJobFinder
	media       MediaStateMachine
	queue       TranscodeEnqueuer
	sessions    SessionExpirer
	alerter     Alerter
	sla         time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// NewWatchdogService creates the periodic sweeper for stuck transcodes and idle sessions
func NewWatchdogService(
	jobs StuckJobFinder,
	media MediaStateMachine,
	queue TranscodeEnqueuer,
	sessions SessionExpirer,
	alerter Alerter,
	sla time.Duration,
	maxAttempts int,
	logger *zap.Logger,
) *watchdogService {
	return &watchdogService{
		jobs:        jobs,
		media:       media,
		queue:       queue,
		sessions:    sessions,
		alerter:     alerter,
		sla:         sla,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// SweepStuckJobs times out attempts started before now minus the SLA. A media is requeued
// while it has attempts left, otherwise it is marked FAILED and operators are alerted.
// PROCESSING media whose latest attempt closed without settling it are recovered the same way.
func (s *watchdogService) SweepStuckJobs(ctx context.Context, now time.Time) (*SweepReport, error) {
	cutoff := now.Add(-s.sla)
	stuck, err := s.jobs.ListStuck(ctx, cutoff, stuckJobBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck jobs: %w", err)
	}
	orphaned, err := s.jobs.ListOrphaned(ctx, cutoff, stuckJobBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned jobs: %w", err)
	}

	report := &SweepReport{}
	for _, job := range stuck {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		closed, err := s.jobs.Finalize(ctx, job.JobID, models.TranscodeJobStatusTimedOut, now,
			fmt.Sprintf("no result within %s", s.sla))
		if err != nil {
			s.logger.Error("failed to time out job", zap.String("job_id", job.JobID), zap.Error(err))
			continue
		}
		if !closed {
			continue
		}
		report.TimedOut++
		s.settle(ctx, job, now, report)
	}

	for _, job := range orphaned {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.logger.Warn("recovering media with no transcode in flight",
			zap.String("media_id", job.MediaID),
			zap.String("job_id", job.JobID),
		)
		report.Orphaned++
		s.settle(ctx, job, now, report)
	}

	if report.TimedOut > 0 || report.Orphaned > 0 {
		s.logger.Info("stuck transcode sweep finished",
			zap.Int("timed_out", report.TimedOut),
			zap.Int("orphaned", report.Orphaned),
			zap.Int("requeued", report.Requeued),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// settle requeues the media while it has attempts left, otherwise fails it
func (s *watchdogService) settle(ctx context.Context, job models.StuckJob, now time.Time, report *SweepReport) {
	if job.Attempt < s.maxAttempts {
		requeued, err := s.requeue(ctx, job.MediaID)
		if err == nil {
			if requeued {
				report.Requeued++
			}
			return
		}
		s.logger.Error("failed to requeue stuck media", zap.String("media_id", job.MediaID), zap.Error(err))
	}

	if s.fail(ctx, job, now) {
		report.Failed++
	}
}

// requeue starts a new attempt unless the media settled in the meantime
func (s *watchdogService) requeue(ctx context.Context, mediaID string) (bool, error) {
	media, err := s.media.GetMedia(ctx, mediaID)
	if err != nil {
		return false, err
	}
	if media.Status != models.MediaStatusProcessing {
		return false, nil
	}
	if _, err := s.queue.Enqueue(ctx, media); err != nil {
		return false, err
	}
	return true, nil
}

func (s *watchdogService) fail(ctx context.Context, job models.StuckJob, now time.Time) bool {
	moved, err := s.media.TransitionStatus(ctx, job.MediaID, models.MediaStatusProcessing, models.MediaStatusFailed)
	if err != nil {
		s.logger.Error("failed to mark stuck media failed", zap.String("media_id", job.MediaID), zap.Error(err))
		return false
	}
	if !moved {
		return false
	}

	subject := fmt.Sprintf("Transcode failed for media %s", job.MediaID)
	body := fmt.Sprintf("Media %s was marked FAILED after %d attempt(s).\nLast job: %s, started %s, timed out at %s.\nRetry with POST /api/v1/admin/media/%s/transcode/retry.",
		job.MediaID, job.Attempt, job.JobID, job.StartedAt.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339), job.MediaID)
	if err := s.alerter.SendAlert(ctx, subject, body); err != nil {
		s.logger.Error("failed to send transcode alert", zap.String("media_id", job.MediaID), zap.Error(err))
	}
	return true
}

// ExpireIdleSessions closes playback sessions whose expiry passed
func (s *watchdogService) ExpireIdleSessions(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.sessions.ExpireIdle(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire idle sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("idle playback sessions expired", zap.Int64("count", n))
	}
	return n, nil
}
