package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
)

type transcodeJobLogRepository struct {
	db *sql.DB
}

// NewTranscodeJobLogRepository creates a new transcode job log repository
func NewTranscodeJobLogRepository(db *sql.DB) *transcodeJobLogRepository {
	return &transcodeJobLogRepository{
		db: db,
	}
}

const jobLogColumns = `id, media_id, job_id, attempt, status, started_at, ended_at, duration_ms, error, created_at`

// NextAttempt returns the attempt number the next job for the media should use
func (r *transcodeJobLogRepository) NextAttempt(ctx context.Context, mediaID string) (int, error) {
	query := `SELECT COALESCE(MAX(attempt), 0) + 1 FROM transcode_job_logs WHERE media_id = ?`

	var attempt int
	if err := r.db.QueryRowContext(ctx, query, mediaID).Scan(&attempt); err != nil {
		return 0, fmt.Errorf("failed to get next attempt: %w", err)
	}

	return attempt, nil
}

// Create inserts a QUEUED attempt row
func (r *transcodeJobLogRepository) Create(ctx context.Context, log *models.TranscodeJobLog) error {
	query := `
		INSERT INTO transcode_job_logs (media_id, job_id, attempt, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		log.MediaID,
		log.JobID,
		log.Attempt,
		log.Status,
		log.StartedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return apperrors.Conflict("transcode attempt %d already exists for media %s", log.Attempt, log.MediaID)
		}
		return fmt.Errorf("failed to create transcode job log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	log.ID = int(id)
	return nil
}

// GetByJobID retrieves an attempt by its job ID
func (r *transcodeJobLogRepository) GetByJobID(ctx context.Context, jobID string) (*models.TranscodeJobLog, error) {
	query := `SELECT ` + jobLogColumns + ` FROM transcode_job_logs WHERE job_id = ? LIMIT 1`

	log, err := scanJobLog(r.db.QueryRowContext(ctx, query, jobID))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("transcode job")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcode job log: %w", err)
	}

	return log, nil
}

// Finalize closes a QUEUED attempt with the given status.
// It returns false when the attempt was already closed.
func (r *transcodeJobLogRepository) Finalize(ctx context.Context, jobID string, status models.TranscodeJobStatus, endedAt time.Time, errMsg string) (bool, error) {
	query := `
		UPDATE transcode_job_logs
		SET status = ?, ended_at = ?, duration_ms = GREATEST(TIMESTAMPDIFF(MICROSECOND, started_at, ?) DIV 1000, 0), error = ?
		WHERE job_id = ? AND status = ?
	`

	var errValue any
	if errMsg != "" {
		errValue = errMsg
	}

	result, err := r.db.ExecContext(ctx, query, status, endedAt, endedAt, errValue, jobID, models.TranscodeJobStatusQueued)
	if err != nil {
		return false, fmt.Errorf("failed to finalize transcode job log: %w", err)
	}

	return affected(result)
}

// ListByMediaID returns every attempt for a media, oldest first
func (r *transcodeJobLogRepository) ListByMediaID(ctx context.Context, mediaID string) ([]models.TranscodeJobLog, error) {
	query := `SELECT ` + jobLogColumns + ` FROM transcode_job_logs WHERE media_id = ? ORDER BY attempt ASC`

	rows, err := r.db.QueryContext(ctx, query, mediaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcode job logs: %w", err)
	}
	defer rows.Close()

	logs := []models.TranscodeJobLog{}
	for rows.Next() {
		log, err := scanJobLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcode job log: %w", err)
		}
		logs = append(logs, *log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcode job logs: %w", err)
	}

	return logs, nil
}

// ListStuck returns open attempts of PROCESSING media that started before cutoff
func (r *transcodeJobLogRepository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]models.StuckJob, error) {
	query := `
		SELECT l.media_id, l.job_id, l.attempt, l.started_at
		FROM transcode_job_logs l
		INNER JOIN media m ON m.id = l.media_id
		WHERE m.status = ? AND l.status = ? AND l.started_at < ?
		ORDER BY l.started_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, models.MediaStatusProcessing, models.TranscodeJobStatusQueued, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck transcode jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.StuckJob{}
	for rows.Next() {
		var job models.StuckJob
		if err := rows.Scan(&job.MediaID, &job.JobID, &job.Attempt, &job.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stuck transcode job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stuck transcode jobs: %w", err)
	}

	return jobs, nil
}

// ListOrphaned returns the latest attempt of PROCESSING media when that attempt closed
// before cutoff, leaving the media with nothing in flight
func (r *transcodeJobLogRepository) ListOrphaned(ctx context.Context, cutoff time.Time, limit int) ([]models.StuckJob, error) {
	query := `
		SELECT l.media_id, l.job_id, l.attempt, l.started_at
		FROM transcode_job_logs l
		INNER JOIN media m ON m.id = l.media_id
		WHERE m.status = ? AND l.status <> ? AND l.ended_at < ?
			AND l.attempt = (SELECT MAX(x.attempt) FROM transcode_job_logs x WHERE x.media_id = l.media_id)
		ORDER BY l.ended_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, models.MediaStatusProcessing, models.TranscodeJobStatusQueued, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned transcode jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.StuckJob{}
	for rows.Next() {
		var job models.StuckJob
		if err := rows.Scan(&job.MediaID, &job.JobID, &job.Attempt, &job.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan orphaned transcode job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orphaned transcode jobs: %w", err)
	}

	return jobs, nil
}

func scanJobLog(row rowScanner) (*models.TranscodeJobLog, error) {
	var (
		log        models.TranscodeJobLog
		endedAt    sql.NullTime
		durationMs sql.NullInt64
		errMsg     sql.NullString
	)

	err := row.Scan(
		&log.ID,
		&log.MediaID,
		&log.JobID,
		&log.Attempt,
		&log.Status,
		&log.StartedAt,
		&endedAt,
		&durationMs,
		&errMsg,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		log.EndedAt = &endedAt.Time
	}
	if durationMs.Valid {
		log.DurationMs = &durationMs.Int64
	}
	log.Error = errMsg.String

	return &log, nil
}
