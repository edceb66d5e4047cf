package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
)

type playbackSessionRepository struct {
	db *sql.DB
}

// NewPlaybackSessionRepository creates a new playback session repository
func NewPlaybackSessionRepository(db *sql.DB) *playbackSessionRepository {
	return &playbackSessionRepository{
		db: db,
	}
}

const sessionColumns = `id, user_id, media_id, lesson_id, course_id, started_at, last_heartbeat_at, expires_at,
	ended_at, watch_time_seconds, completion_rate`

// Create inserts a new playback session
func (r *playbackSessionRepository) Create(ctx context.Context, session *models.PlaybackSession) error {
	query := `
		INSERT INTO playback_sessions (id, user_id, media_id, lesson_id, course_id, started_at, last_heartbeat_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		nullString(session.MediaID),
		session.LessonID,
		session.CourseID,
		session.StartedAt,
		session.LastHeartbeatAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create playback session: %w", err)
	}

	return nil
}

// GetByID retrieves a playback session by ID
func (r *playbackSessionRepository) GetByID(ctx context.Context, id string) (*models.PlaybackSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM playback_sessions WHERE id = ? LIMIT 1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("playback session")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playback session: %w", err)
	}

	return session, nil
}

// FindOpen returns the newest open session of a user on a lesson, or nil when there is none
func (r *playbackSessionRepository) FindOpen(ctx context.Context, userID, lessonID int, now time.Time) (*models.PlaybackSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM playback_sessions
		WHERE user_id = ? AND lesson_id = ? AND ended_at IS NULL AND expires_at > ?
		ORDER BY started_at DESC
		LIMIT 1
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, userID, lessonID, now))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open playback session: %w", err)
	}

	return session, nil
}

// Extend pushes the idle expiry of an open session
func (r *playbackSessionRepository) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	query := `UPDATE playback_sessions SET expires_at = GREATEST(expires_at, ?) WHERE id = ? AND ended_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, expiresAt, id); err != nil {
		return fmt.Errorf("failed to extend playback session: %w", err)
	}

	return nil
}

// ApplyHeartbeat merges reported progress into the session under a row lock.
// Watch time and completion rate only ever grow. It returns the progress before and after the merge.
func (r *playbackSessionRepository) ApplyHeartbeat(ctx context.Context, id string, reported models.SessionProgress, now, expiresAt time.Time) (models.SessionProgress, models.SessionProgress, error) {
	var before, after models.SessionProgress

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return before, after, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var endedAt sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT watch_time_seconds, completion_rate, ended_at FROM playback_sessions WHERE id = ? FOR UPDATE`,
		id,
	).Scan(&before.WatchTimeSeconds, &before.CompletionRate, &endedAt)
	if err == sql.ErrNoRows {
		return before, after, apperrors.NotFound("playback session")
	}
	if err != nil {
		return before, after, fmt.Errorf("failed to lock playback session: %w", err)
	}
	if endedAt.Valid {
		return before, after, apperrors.Conflict("playback session has ended")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE playback_sessions
		SET watch_time_seconds = GREATEST(watch_time_seconds, ?),
			completion_rate = GREATEST(completion_rate, ?),
			last_heartbeat_at = ?,
			expires_at = GREATEST(expires_at, ?)
		WHERE id = ?
	`, reported.WatchTimeSeconds, reported.CompletionRate, now, expiresAt, id)
	if err != nil {
		return before, after, fmt.Errorf("failed to apply heartbeat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return before, after, fmt.Errorf("failed to commit heartbeat: %w", err)
	}

	return before, before.Merge(reported), nil
}

// End closes a session. It returns false when the session was already closed.
func (r *playbackSessionRepository) End(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `UPDATE playback_sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to end playback session: %w", err)
	}

	return affected(result)
}

// ExpireIdle closes every open session whose expiry passed and returns how many were closed
func (r *playbackSessionRepository) ExpireIdle(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE playback_sessions SET ended_at = expires_at WHERE ended_at IS NULL AND expires_at <= ?`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire playback sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}

func scanSession(row rowScanner) (*models.PlaybackSession, error) {
	var (
		session models.PlaybackSession
		mediaID sql.NullString
		endedAt sql.NullTime
	)

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&mediaID,
		&session.LessonID,
		&session.CourseID,
		&session.StartedAt,
		&session.LastHeartbeatAt,
		&session.ExpiresAt,
		&endedAt,
		&session.WatchTimeSeconds,
		&session.CompletionRate,
	)
	if err != nil {
		return nil, err
	}

	if mediaID.Valid {
		id := mediaID.String
		session.MediaID = &id
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}

	return &session, nil
}
