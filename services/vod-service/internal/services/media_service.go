package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"github.com/learnhub/backend/services/vod-service/internal/storage"
	"go.uber.org/zap"
)

// BlobStore is the object storage gateway. Clients upload and download through pre-signed URLs.
type BlobStore interface {
	// PresignPut returns a URL accepting a single PUT of key until it expires
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error)
	// PresignGet returns a URL allowing reads of key until it expires
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
	// Stat returns storage.ErrObjectNotFound when the key does not exist
	Stat(ctx context.Context, key string) (*storage.ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// MediaRepository defines the interface for media data access
type MediaRepository interface {
	Create(ctx context.Context, media *models.Media) error
	GetByID(ctx context.Context, id string) (*models.Media, error)
	// UpdateStatus is a compare-and-set on the current status
	UpdateStatus(ctx context.Context, id string, from, to models.MediaStatus) (bool, error)
	// MarkReady moves PROCESSING to READY and writes the transcode outputs
	MarkReady(ctx context.Context, id string, output *models.TranscodeOutput) (bool, error)
	Delete(ctx context.Context, id string) error
}

// JobLogReader lists the transcode attempts of a media
type JobLogReader interface {
	ListByMediaID(ctx context.Context, mediaID string) ([]models.TranscodeJobLog, error)
}

// MediaCache is a read-through cache of media records
type MediaCache interface {
	// Get returns nil without error on a miss
	Get(ctx context.Context, id string) (*models.Media, error)
	Set(ctx context.Context, media *models.Media) error
	Invalidate(ctx context.Context, id string) error
}

// TranscodeEnqueuer starts a new transcode attempt for a media
type TranscodeEnqueuer interface {
	Enqueue(ctx context.Context, media *models.Media) (*models.TranscodeJobLog, error)
}

// mediaService implements the media registry
type mediaService struct {
	repo       MediaRepository
	jobLogs    JobLogReader
	blobs      BlobStore
	cache      MediaCache
	transcoder TranscodeEnqueuer
	uploadTTL  time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewMediaService creates a new media service
func NewMediaService(
	repo MediaRepository,
	jobLogs JobLogReader,
	blobs BlobStore,
	cache MediaCache,
	transcoder TranscodeEnqueuer,
	uploadTTL time.Duration,
	logger *zap.Logger,
) *mediaService {
	return &mediaService{
		repo:       repo,
		jobLogs:    jobLogs,
		blobs:      blobs,
		cache:      cache,
		transcoder: transcoder,
		uploadTTL:  uploadTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// GrantUpload validates the declared file and returns a pre-signed upload URL for a new UPLOADED media
func (s *mediaService) GrantUpload(ctx context.Context, fileName, mimeType string, fileSize int64, uploaderID int) (*models.UploadGrant, error) {
	name, err := sanitizeFileName(fileName)
	if err != nil {
		return nil, err
	}

	normalized := models.NormalizeMimeType(mimeType)
	category, ok := models.CategoryOf(normalized)
	if !ok {
		return nil, apperrors.Validation("mime type %q is not allowed", mimeType)
	}
	if fileSize <= 0 {
		return nil, apperrors.Validation("fileSize must be positive")
	}
	if fileSize > category.MaxSize() {
		return nil, apperrors.Validation("file is too large: %s uploads are limited to %d bytes", category, category.MaxSize())
	}

	mediaID := uuid.NewString()
	key := models.MediaStorageKey(mediaID, name)

	uploadURL, expiresAt, err := s.blobs.PresignPut(ctx, key, normalized, s.uploadTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	media := &models.Media{
		ID:               mediaID,
		OriginalFileName: name,
		StorageKey:       key,
		MimeType:         normalized,
		Size:             fileSize,
		Status:           models.MediaStatusUploaded,
		UploaderID:       uploaderID,
		UploadExpiresAt:  expiresAt,
	}
	if err := s.repo.Create(ctx, media); err != nil {
		return nil, fmt.Errorf("failed to register media: %w", err)
	}

	s.logger.Info("upload granted",
		zap.String("media_id", mediaID),
		zap.String("mime_type", normalized),
		zap.Int64("size", fileSize),
		zap.Int("uploader_id", uploaderID),
	)

	return &models.UploadGrant{
		UploadURL: uploadURL,
		MediaID:   mediaID,
		ExpiresAt: expiresAt,
	}, nil
}

// CompleteUpload confirms the object reached the blob store and moves the media out of UPLOADED:
// videos go to PROCESSING with a transcode job, everything else straight to READY.
// Calling it again after the transition returns the current record unchanged.
func (s *mediaService) CompleteUpload(ctx context.Context, mediaID string, uploaderID int) (*models.Media, error) {
	media, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if media.UploaderID != uploaderID {
		return nil, apperrors.Authorization("only the uploader can complete this upload")
	}
	if media.Status != models.MediaStatusUploaded {
		return media, nil
	}

	info, err := s.blobs.Stat(ctx, media.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		if s.now().After(media.UploadExpiresAt) {
			return nil, apperrors.Validation("upload url expired before the file was uploaded, request a new upload url")
		}
		return nil, apperrors.Validation("uploaded file not found, upload it or request a new upload url")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify upload: %w", err)
	}

	category := media.Category()
	if info.Size > category.MaxSize() {
		return nil, apperrors.Validation("uploaded file is too large: %s uploads are limited to %d bytes", category, category.MaxSize())
	}
	if media.IsVideo() {
		if detected, known := models.CategoryOf(info.ContentType); known && detected != models.MediaCategoryVideo {
			return nil, apperrors.Validation("uploaded file is not a video (detected %s)", models.NormalizeMimeType(info.ContentType))
		}
	}

	if !media.IsVideo() {
		if _, err := s.TransitionStatus(ctx, mediaID, models.MediaStatusUploaded, models.MediaStatusReady); err != nil {
			return nil, err
		}
		return s.repo.GetByID(ctx, mediaID)
	}

	moved, err := s.TransitionStatus(ctx, mediaID, models.MediaStatusUploaded, models.MediaStatusProcessing)
	if err != nil {
		return nil, err
	}
	if moved {
		media.Status = models.MediaStatusProcessing
		if _, err := s.transcoder.Enqueue(ctx, media); err != nil {
			if _, failErr := s.TransitionStatus(ctx, mediaID, models.MediaStatusProcessing, models.MediaStatusFailed); failErr != nil {
				s.logger.Error("failed to mark media failed after enqueue error", zap.String("media_id", mediaID), zap.Error(failErr))
			}
			return nil, fmt.Errorf("failed to enqueue transcode: %w", err)
		}
	}

	return s.repo.GetByID(ctx, mediaID)
}

// TransitionStatus moves a media between two statuses allowed by the transition table.
// It returns false without error when the media was no longer in the expected status.
func (s *mediaService) TransitionStatus(ctx context.Context, mediaID string, from, to models.MediaStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, apperrors.Conflict("media cannot move from %s to %s", from, to)
	}

	ok, err := s.repo.UpdateStatus(ctx, mediaID, from, to)
	if err != nil {
		return false, err
	}
	if ok {
		s.invalidate(ctx, mediaID)
		s.logger.Info("media status changed", zap.String("media_id", mediaID), zap.String("from", string(from)), zap.String("to", string(to)))
	}
	return ok, nil
}

// ApplyTranscodeResult moves a PROCESSING media to READY or FAILED.
// A result for a media that already left PROCESSING is a no-op.
func (s *mediaService) ApplyTranscodeResult(ctx context.Context, mediaID string, result *models.TranscodeResult) (*models.Media, error) {
	media, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if media.Status.IsTerminal() {
		s.logger.Info("ignoring transcode result for settled media",
			zap.String("media_id", mediaID),
			zap.String("status", string(media.Status)),
			zap.String("job_id", result.JobID),
		)
		return media, nil
	}
	if media.Status != models.MediaStatusProcessing {
		return nil, apperrors.Conflict("media %s is %s, not PROCESSING", mediaID, media.Status)
	}

	var applied bool
	if result.Succeeded() {
		applied, err = s.repo.MarkReady(ctx, mediaID, result.Output)
	} else {
		applied, err = s.repo.UpdateStatus(ctx, mediaID, models.MediaStatusProcessing, models.MediaStatusFailed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply transcode result: %w", err)
	}

	if applied {
		s.invalidate(ctx, mediaID)
		s.logger.Info("transcode result applied",
			zap.String("media_id", mediaID),
			zap.String("job_id", result.JobID),
			zap.String("status", string(result.TargetStatus())),
		)
	}

	return s.repo.GetByID(ctx, mediaID)
}

// GetMedia returns a media through the cache. Only READY and FAILED records are cached.
func (s *mediaService) GetMedia(ctx context.Context, mediaID string) (*models.Media, error) {
	if cached, err := s.cache.Get(ctx, mediaID); err != nil {
		s.logger.Warn("media cache read failed", zap.String("media_id", mediaID), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	media, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if !media.Status.IsTerminal() {
		return media, nil
	}

	if err := s.cache.Set(ctx, media); err != nil {
		s.logger.Warn("media cache write failed", zap.String("media_id", mediaID), zap.Error(err))
	}
	return media, nil
}

// ListJobLogs returns the transcode attempts of a media, oldest first
func (s *mediaService) ListJobLogs(ctx context.Context, mediaID string) ([]models.TranscodeJobLog, error) {
	if _, err := s.repo.GetByID(ctx, mediaID); err != nil {
		return nil, err
	}
	return s.jobLogs.ListByMediaID(ctx, mediaID)
}

// Delete removes a media and every object stored for it. Only the uploader or an admin may delete.
// Lessons referencing the media fall back to their legacy URL.
func (s *mediaService) Delete(ctx context.Context, mediaID string, callerID int, isAdmin bool) error {
	media, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return err
	}
	if !isAdmin && media.UploaderID != callerID {
		return apperrors.Authorization("only the uploader or an admin can delete this media")
	}

	if err := s.repo.Delete(ctx, mediaID); err != nil {
		return err
	}
	s.invalidate(ctx, mediaID)

	prefix := models.MediaPrefix(mediaID)
	if !strings.HasPrefix(media.StorageKey, prefix) {
		if err := s.blobs.Delete(ctx, media.StorageKey); err != nil {
			s.logger.Error("failed to delete original object", zap.String("media_id", mediaID), zap.String("key", media.StorageKey), zap.Error(err))
		}
	}
	purged, err := s.blobs.DeletePrefix(ctx, prefix)
	if err != nil {
		s.logger.Error("failed to purge media objects", zap.String("media_id", mediaID), zap.String("prefix", prefix), zap.Error(err))
		return nil
	}

	s.logger.Info("media deleted", zap.String("media_id", mediaID), zap.Int("objects_purged", purged), zap.Int("caller_id", callerID))
	return nil
}

func (s *mediaService) invalidate(ctx context.Context, mediaID string) {
	if err := s.cache.Invalidate(ctx, mediaID); err != nil {
		s.logger.Warn("media cache invalidation failed", zap.String("media_id", mediaID), zap.Error(err))
	}
}

// sanitizeFileName keeps the base name of a client supplied file name
func sanitizeFileName(fileName string) (string, error) {
	name := strings.TrimSpace(fileName)
	if name == "" {
		return "", apperrors.Validation("fileName is required")
	}
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return "", apperrors.Validation("fileName %q is invalid", fileName)
	}
	if len(name) > 255 {
		return "", apperrors.Validation("fileName must be at most 255 characters")
	}
	return name, nil
}
