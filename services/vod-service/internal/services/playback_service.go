package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grafov/m3u8"
	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// SessionRepository defines the interface for playback session data access
type SessionRepository interface {
	Create(ctx context.Context, session *models.PlaybackSession) error
	GetByID(ctx context.Context, id string) (*models.PlaybackSession, error)
	// FindOpen returns nil without error when the user has no open session on the lesson
	FindOpen(ctx context.Context, userID, lessonID int, now time.Time) (*models.PlaybackSession, error)
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	ApplyHeartbeat(ctx context.Context, id string, reported models.SessionProgress, now, expiresAt time.Time) (models.SessionProgress, models.SessionProgress, error)
	End(ctx context.Context, id string, now time.Time) (bool, error)
}

// LessonFinder resolves a lesson by id
type LessonFinder interface {
	GetByID(ctx context.Context, id int) (*models.Lesson, error)
}

// MediaGetter resolves a media by id
type MediaGetter interface {
	GetMedia(ctx context.Context, mediaID string) (*models.Media, error)
}

// ManifestStore reads manifests and signs their URIs
type ManifestStore interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ProgressRecorder receives lesson progress derived from playback
type ProgressRecorder interface {
	RecordTimeSpent(ctx context.Context, userID int, lesson *models.Lesson, seconds int) error
	EnsureLessonComplete(ctx context.Context, userID int, lesson *models.Lesson) (bool, error)
}

// PlaybackConfig holds the playback timings and the public address of the API
type PlaybackConfig struct {
	URLTTL        time.Duration
	IdleTimeout   time.Duration
	PublicBaseURL string
}

type playbackService struct {
	lessons     LessonFinder
	enrollments EnrollmentFinder
	media       MediaGetter
	sessions    SessionRepository
	blobs       ManifestStore
	progress    ProgressRecorder
	cfg         PlaybackConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewPlaybackService creates a new playback authorizer
func NewPlaybackService(
	lessons LessonFinder,
	enrollments EnrollmentFinder,
	media MediaGetter,
	sessions SessionRepository,
	blobs ManifestStore,
	progress ProgressRecorder,
	cfg PlaybackConfig,
	logger *zap.Logger,
) *playbackService {
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &playbackService{
		lessons:     lessons,
		enrollments: enrollments,
		media:       media,
		sessions:    sessions,
		blobs:       blobs,
		progress:    progress,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// IssuePlaybackGrant authorizes a user to play the video of a lesson and opens (or reuses) a playback session.
// mediaID may be empty for lessons that only carry a legacy URL.
func (s *playbackService) IssuePlaybackGrant(ctx context.Context, mediaID string, userID, lessonID int) (*models.PlaybackGrant, error) {
	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if err := requireEnrollment(ctx, s.enrollments, userID, lesson.CourseID); err != nil {
		return nil, err
	}
	video, ok := lesson.Content.(models.VideoContent)
	if !ok {
		return nil, apperrors.Validation("lesson %d is a %s lesson, not a video", lessonID, lesson.Kind())
	}

	var media *models.Media
	if mediaID != "" {
		if video.MediaID == nil || *video.MediaID != mediaID {
			return nil, apperrors.Validation("media %s is not attached to lesson %d", mediaID, lessonID)
		}
		media, err = s.media.GetMedia(ctx, mediaID)
		if err != nil {
			return nil, err
		}
		switch media.Status {
		case models.MediaStatusReady:
		case models.MediaStatusFailed:
			return nil, apperrors.NotReady(string(media.Status), "transcoding failed for this video")
		default:
			return nil, apperrors.NotReady(string(media.Status), "video is still being processed")
		}
	} else if video.MediaID != nil {
		return nil, apperrors.Validation("mediaId is required for lesson %d", lessonID)
	}

	source := video.Source(media)
	now := s.now()

	if source.IsLegacy() {
		if source.LegacyURL == "" {
			return nil, apperrors.NotFound("video source")
		}
		session, err := s.openSession(ctx, userID, lesson, nil, now)
		if err != nil {
			return nil, err
		}
		return &models.PlaybackGrant{
			SignedURL: source.LegacyURL,
			ExpiresAt: session.ExpiresAt,
			SessionID: session.ID,
			Legacy:    true,
		}, nil
	}

	signedURL, expiresAt, err := s.blobs.PresignGet(ctx, source.ManifestKey, s.cfg.URLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign manifest url: %w", err)
	}

	session, err := s.openSession(ctx, userID, lesson, &media.ID, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("playback granted",
		zap.String("session_id", session.ID),
		zap.String("media_id", media.ID),
		zap.Int("lesson_id", lessonID),
		zap.Int("user_id", userID),
	)

	return &models.PlaybackGrant{
		SignedURL:   signedURL,
		ExpiresAt:   expiresAt,
		SessionID:   session.ID,
		ManifestURL: s.manifestURL(session.ID, ""),
	}, nil
}

func (s *playbackService) openSession(ctx context.Context, userID int, lesson *models.Lesson, mediaID *string, now time.Time) (*models.PlaybackSession, error) {
	expiresAt := now.Add(s.cfg.IdleTimeout)

	existing, err := s.sessions.FindOpen(ctx, userID, lesson.ID, now)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.sessions.Extend(ctx, existing.ID, expiresAt); err != nil {
			return nil, err
		}
		if expiresAt.After(existing.ExpiresAt) {
			existing.ExpiresAt = expiresAt
		}
		return existing, nil
	}

	session := &models.PlaybackSession{
		ID:              uuid.NewString(),
		UserID:          userID,
		MediaID:         mediaID,
		LessonID:        lesson.ID,
		CourseID:        lesson.CourseID,
		StartedAt:       now,
		LastHeartbeatAt: now,
		ExpiresAt:       expiresAt,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Heartbeat merges client-reported progress into the session. Progress only grows, so heartbeats
// delivered out of order never regress it. Crossing the completion threshold completes the lesson.
func (s *playbackService) Heartbeat(ctx context.Context, sessionID string, userID, watchTimeSeconds int, completionRate float64) (*models.HeartbeatResult, error) {
	if math.IsNaN(completionRate) || completionRate < 0 || completionRate > 1 {
		return nil, apperrors.Validation("completionRate must be between 0 and 1")
	}
	if watchTimeSeconds < 0 {
		return nil, apperrors.Validation("watchTimeSeconds must not be negative")
	}

	session, err := s.ownedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if session.EndedAt != nil {
		return nil, apperrors.Conflict("playback session has ended")
	}
	if !session.IsOpen(now) {
		return nil, apperrors.Conflict("playback session has expired")
	}

	reported := models.SessionProgress{WatchTimeSeconds: watchTimeSeconds, CompletionRate: completionRate}
	before, after, err := s.sessions.ApplyHeartbeat(ctx, sessionID, reported, now, now.Add(s.cfg.IdleTimeout))
	if err != nil {
		return nil, err
	}

	result := &models.HeartbeatResult{
		SessionID:        sessionID,
		WatchTimeSeconds: after.WatchTimeSeconds,
		CompletionRate:   after.CompletionRate,
		LessonCompleted:  after.CompletionRate >= models.CompletionThreshold,
	}

	delta := after.WatchTimeSeconds - before.WatchTimeSeconds
	if delta <= 0 && !result.LessonCompleted {
		return result, nil
	}

	lesson, err := s.lessons.GetByID(ctx, session.LessonID)
	if err != nil {
		return nil, err
	}
	if delta > 0 {
		if err := s.progress.RecordTimeSpent(ctx, userID, lesson, delta); err != nil {
			return nil, err
		}
	}
	if result.LessonCompleted {
		completedNow, err := s.progress.EnsureLessonComplete(ctx, userID, lesson)
		if err != nil {
			return nil, err
		}
		if completedNow {
			s.logger.Info("lesson completed by playback",
				zap.String("session_id", sessionID),
				zap.Int("lesson_id", lesson.ID),
				zap.Float64("completion_rate", after.CompletionRate),
			)
		}
	}

	return result, nil
}

// EndSession closes a playback session. Ending a closed session is a no-op.
func (s *playbackService) EndSession(ctx context.Context, sessionID string, userID int) error {
	if _, err := s.ownedSession(ctx, sessionID, userID); err != nil {
		return err
	}
	ended, err := s.sessions.End(ctx, sessionID, s.now())
	if err != nil {
		return err
	}
	if ended {
		s.logger.Info("playback session ended", zap.String("session_id", sessionID), zap.Int("user_id", userID))
	}
	return nil
}

// RenderManifest returns the master playlist of the session media, or one of its variant playlists,
// with nested playlists pointing back at this endpoint and segments replaced by signed URLs
func (s *playbackService) RenderManifest(ctx context.Context, sessionID string, userID int, variant string) ([]byte, error) {
	session, err := s.ownedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen(s.now()) {
		return nil, apperrors.Conflict("playback session is no longer open")
	}
	if session.MediaID == nil {
		return nil, apperrors.Validation("playback session has no transcoded media")
	}

	media, err := s.media.GetMedia(ctx, *session.MediaID)
	if err != nil {
		return nil, err
	}
	if media.Status != models.MediaStatusReady || media.ManifestKey == "" {
		return nil, apperrors.NotReady(string(media.Status), "video is not ready for playback")
	}

	manifestDir := path.Dir(media.ManifestKey)
	key := media.ManifestKey
	if variant != "" {
		if !isPlaylistPath(variant) {
			return nil, apperrors.Validation("variant %q is not a playlist path", variant)
		}
		key = path.Join(manifestDir, variant)
	}
	if !strings.HasPrefix(key, models.MediaPrefix(media.ID)) {
		return nil, apperrors.Validation("variant %q is outside the media", variant)
	}

	r, err := s.blobs.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer r.Close()

	playlist, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", key, err)
	}

	switch listType {
	case m3u8.MASTER:
		s.rewriteMaster(playlist.(*m3u8.MasterPlaylist), sessionID, manifestDir, path.Dir(key))
	case m3u8.MEDIA:
		if err := s.rewriteMedia(ctx, playlist.(*m3u8.MediaPlaylist), media.ID, path.Dir(key)); err != nil {
			return nil, err
		}
	}

	return playlist.Encode().Bytes(), nil
}

func (s *playbackService) rewriteMaster(playlist *m3u8.MasterPlaylist, sessionID, manifestDir, dir string) {
	rewrite := func(uri string) string {
		if uri == "" || isAbsoluteURI(uri) {
			return uri
		}
		rel := strings.TrimPrefix(path.Join(dir, uri), manifestDir+"/")
		return s.manifestURL(sessionID, rel)
	}

	// variants of one rendition group share their alternatives
	seen := make(map[*m3u8.Alternative]bool)
	for _, v := range playlist.Variants {
		if v == nil {
			continue
		}
		v.URI = rewrite(v.URI)
		for _, alt := range v.Alternatives {
			if alt != nil && !seen[alt] {
				seen[alt] = true
				alt.URI = rewrite(alt.URI)
			}
		}
	}
}

func (s *playbackService) rewriteMedia(ctx context.Context, playlist *m3u8.MediaPlaylist, mediaID, dir string) error {
	prefix := models.MediaPrefix(mediaID)
	signed := make(map[string]string)
	sign := func(uri string) (string, error) {
		if uri == "" || isAbsoluteURI(uri) {
			return uri, nil
		}
		key := path.Join(dir, uri)
		if !strings.HasPrefix(key, prefix) {
			return "", apperrors.Validation("manifest references %q outside the media", uri)
		}
		if u, ok := signed[key]; ok {
			return u, nil
		}
		u, _, err := s.blobs.PresignGet(ctx, key, s.cfg.URLTTL)
		if err != nil {
			return "", fmt.Errorf("failed to sign %s: %w", key, err)
		}
		signed[key] = u
		return u, nil
	}

	var err error
	if playlist.Key != nil {
		if playlist.Key.URI, err = sign(playlist.Key.URI); err != nil {
			return err
		}
	}
	if playlist.Map != nil {
		if playlist.Map.URI, err = sign(playlist.Map.URI); err != nil {
			return err
		}
	}
	for _, seg := range playlist.Segments {
		if seg == nil {
			continue
		}
		if seg.URI, err = sign(seg.URI); err != nil {
			return err
		}
		if seg.Key != nil {
			if seg.Key.URI, err = sign(seg.Key.URI); err != nil {
				return err
			}
		}
		if seg.Map != nil {
			if seg.Map.URI, err = sign(seg.Map.URI); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *playbackService) manifestURL(sessionID, variant string) string {
	u := s.cfg.PublicBaseURL + "/api/v1/playback/sessions/" + url.PathEscape(sessionID) + "/manifest"
	if variant != "" {
		u += "?variant=" + url.QueryEscape(variant)
	}
	return u
}

func (s *playbackService) ownedSession(ctx context.Context, sessionID string, userID int) (*models.PlaybackSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, apperrors.Authorization("playback session belongs to another user")
	}
	return session, nil
}

// isPlaylistPath accepts clean relative paths to .m3u8 files
func isPlaylistPath(p string) bool {
	if p == "" || path.IsAbs(p) || path.Clean(p) != p || strings.Contains(p, "\\") {
		return false
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return false
		}
	}
	return strings.HasSuffix(p, ".m3u8")
}

func isAbsoluteURI(uri string) bool {
	u, err := url.Parse(uri)
	return err == nil && u.IsAbs()
}
