package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
)

// mediaRepository implements media repository operations
type mediaRepository struct {
	db *sql.DB
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *sql.DB) *mediaRepository {
	return &mediaRepository{
		db: db,
	}
}

const mediaColumns = `id, original_file_name, storage_key, mime_type, size, status, manifest_key,
	thumbnails, duration_seconds, width, height, metadata, uploader_id, upload_expires_at, created_at, updated_at`

// Create inserts a new media record in UPLOADED status
func (r *mediaRepository) Create(ctx context.Context, media *models.Media) error {
	query := `
		INSERT INTO media (id, original_file_name, storage_key, mime_type, size, status, metadata, uploader_id, upload_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	metadata, err := marshalNullableJSON(media.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode media metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		media.ID,
		media.OriginalFileName,
		media.StorageKey,
		media.MimeType,
		media.Size,
		media.Status,
		metadata,
		media.UploaderID,
		media.UploadExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create media: %w", err)
	}

	return nil
}

// GetByID retrieves a media by ID
func (r *mediaRepository) GetByID(ctx context.Context, id string) (*models.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = ? LIMIT 1`

	media, err := scanMedia(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("media")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media by id: %w", err)
	}

	return media, nil
}

// UpdateStatus moves a media from one status to another.
// It returns false when the media was not in the expected status.
func (r *mediaRepository) UpdateStatus(ctx context.Context, id string, from, to models.MediaStatus) (bool, error) {
	query := `UPDATE media SET status = ? WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update media status: %w", err)
	}

	return affected(result)
}

// MarkReady moves a PROCESSING media to READY and writes the transcode outputs in the same statement
func (r *mediaRepository) MarkReady(ctx context.Context, id string, output *models.TranscodeOutput) (bool, error) {
	query := `
		UPDATE media
		SET status = ?, manifest_key = ?, thumbnails = ?, duration_seconds = ?, width = ?, height = ?
		WHERE id = ? AND status = ?
	`

	thumbnails, err := json.Marshal(nonNilStrings(output.Thumbnails))
	if err != nil {
		return false, fmt.Errorf("failed to encode thumbnails: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query,
		models.MediaStatusReady,
		output.ManifestKey,
		string(thumbnails),
		output.DurationSeconds,
		output.Width,
		output.Height,
		id,
		models.MediaStatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark media ready: %w", err)
	}

	return affected(result)
}

// Delete deletes a media by ID. Job logs and playback sessions cascade; lessons keep their legacy URL.
func (r *mediaRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM media WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}

	ok, err := affected(result)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("media")
	}

	return nil
}

func scanMedia(row rowScanner) (*models.Media, error) {
	var (
		media       models.Media
		manifestKey sql.NullString
		thumbnails  sql.NullString
		duration    sql.NullFloat64
		width       sql.NullInt64
		height      sql.NullInt64
		metadata    sql.NullString
	)

	err := row.Scan(
		&media.ID,
		&media.OriginalFileName,
		&media.StorageKey,
		&media.MimeType,
		&media.Size,
		&media.Status,
		&manifestKey,
		&thumbnails,
		&duration,
		&width,
		&height,
		&metadata,
		&media.UploaderID,
		&media.UploadExpiresAt,
		&media.CreatedAt,
		&media.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	media.ManifestKey = manifestKey.String
	media.DurationSeconds = duration.Float64
	media.Width = int(width.Int64)
	media.Height = int(height.Int64)

	media.Thumbnails = []string{}
	if thumbnails.Valid && thumbnails.String != "" {
		if err := json.Unmarshal([]byte(thumbnails.String), &media.Thumbnails); err != nil {
			return nil, fmt.Errorf("failed to decode thumbnails: %w", err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &media.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	return &media, nil
}
