package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/learnhub/backend/services/vod-service/internal/services"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const watchdogLockKey = "vod:watchdog:lock"

// Watchdog defines the periodic maintenance operations
type Watchdog interface {
	// SweepStuckJobs times out attempts that exceeded the SLA and requeues or fails their media.
	SweepStuckJobs(ctx context.Context, now time.Time) (*services.SweepReport, error)
	// ExpireIdleSessions ends playback sessions past their idle expiry.
	ExpireIdleSessions(ctx context.Context, now time.Time) (int64, error)
}

// Locker acquires a short-lived lock so one scheduler replica runs each tick
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Scheduler runs the watchdog on a cron schedule
type Scheduler struct {
	cron     *cron.Cron
	watchdog Watchdog
	locker   Locker
	owner    string
	lockTTL  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance. schedule is a standard five-field cron expression.
func NewScheduler(watchdog Watchdog, locker Locker, schedule, owner string, lockTTL time.Duration, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		watchdog: watchdog,
		locker:   locker,
		owner:    owner,
		lockTTL:  lockTTL,
		logger:   logger,
		now:      time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid watchdog schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for a running tick to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.runOnce(ctx)
}

// runOnce sweeps stuck transcode jobs and expires idle playback sessions
func (s *Scheduler) runOnce(ctx context.Context) {
	acquired, err := s.locker.SetNX(ctx, watchdogLockKey, s.owner, s.lockTTL).Result()
	if err != nil {
		s.logger.Error("Failed to acquire watchdog lock", zap.Error(err))
		return
	}
	if !acquired {
		s.logger.Debug("Watchdog tick held by another replica")
		return
	}

	now := s.now()

	if _, err := s.watchdog.SweepStuckJobs(ctx, now); err != nil {
		s.logger.Error("Failed to sweep stuck transcode jobs", zap.Error(err))
	}

	if _, err := s.watchdog.ExpireIdleSessions(ctx, now); err != nil {
		s.logger.Error("Failed to expire idle playback sessions", zap.Error(err))
	}
}
