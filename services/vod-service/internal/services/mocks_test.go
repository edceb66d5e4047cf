package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"github.com/learnhub/backend/services/vod-service/internal/storage"
)

var (
	errDB      = errors.New("database error")
	errStorage = errors.New("storage error")
	testNow    = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptr[T any](v T) *T {
	return &v
}

// mockMediaRepository is an in-memory MediaRepository with compare-and-set semantics
type mockMediaRepository struct {
	media     map[string]*models.Media
	createErr error
	getErr    error
	updateErr error
	deleted   []string
}

func newMockMediaRepository(media ...*models.Media) *mockMediaRepository {
	m := &mockMediaRepository{media: map[string]*models.Media{}}
	for _, md := range media {
		m.media[md.ID] = md
	}
	return m
}

func (m *mockMediaRepository) Create(ctx context.Context, media *models.Media) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *media
	m.media[media.ID] = &cp
	return nil
}

func (m *mockMediaRepository) GetByID(ctx context.Context, id string) (*models.Media, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	md, ok := m.media[id]
	if !ok {
		return nil, apperrors.NotFound("media")
	}
	cp := *md
	return &cp, nil
}

func (m *mockMediaRepository) UpdateStatus(ctx context.Context, id string, from, to models.MediaStatus) (bool, error) {
	if m.updateErr != nil {
		return false, m.updateErr
	}
	md, ok := m.media[id]
	if !ok || md.Status != from {
		return false, nil
	}
	md.Status = to
	return true, nil
}

func (m *mockMediaRepository) MarkReady(ctx context.Context, id string, output *models.TranscodeOutput) (bool, error) {
	if m.updateErr != nil {
		return false, m.updateErr
	}
	md, ok := m.media[id]
	if !ok || md.Status != models.MediaStatusProcessing {
		return false, nil
	}
	md.Status = models.MediaStatusReady
	md.ManifestKey = output.ManifestKey
	md.Thumbnails = output.Thumbnails
	md.DurationSeconds = output.DurationSeconds
	md.Width, md.Height = output.Width, output.Height
	return true, nil
}

func (m *mockMediaRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.media[id]; !ok {
		return apperrors.NotFound("media")
	}
	delete(m.media, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// mockJobLogRepository is an in-memory transcode attempt log
type mockJobLogRepository struct {
	logs      []*models.TranscodeJobLog
	stuck     []models.StuckJob
	orphaned  []models.StuckJob
	createErr error
	listErr   error
}

func (m *mockJobLogRepository) NextAttempt(ctx context.Context, mediaID string) (int, error) {
	n := 0
	for _, l := range m.logs {
		if l.MediaID == mediaID && l.Attempt > n {
			n = l.Attempt
		}
	}
	return n + 1, nil
}

func (m *mockJobLogRepository) Create(ctx context.Context, log *models.TranscodeJobLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *log
	cp.ID = len(m.logs) + 1
	log.ID = cp.ID
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *mockJobLogRepository) GetByJobID(ctx context.Context, jobID string) (*models.TranscodeJobLog, error) {
	for _, l := range m.logs {
		if l.JobID == jobID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("transcode job")
}

func (m *mockJobLogRepository) Finalize(ctx context.Context, jobID string, status models.TranscodeJobStatus, endedAt time.Time, errMsg string) (bool, error) {
	for _, l := range m.logs {
		if l.JobID == jobID && l.Status == models.TranscodeJobStatusQueued {
			l.Status = status
			l.EndedAt = &endedAt
			l.Error = errMsg
			return true, nil
		}
	}
	return false, nil
}

func (m *mockJobLogRepository) ListByMediaID(ctx context.Context, mediaID string) ([]models.TranscodeJobLog, error) {
	var out []models.TranscodeJobLog
	for _, l := range m.logs {
		if l.MediaID == mediaID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockJobLogRepository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]models.StuckJob, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.StuckJob
	for _, j := range m.stuck {
		if j.StartedAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *mockJobLogRepository) ListOrphaned(ctx context.Context, cutoff time.Time, limit int) ([]models.StuckJob, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.orphaned, nil
}

func (m *mockJobLogRepository) byMedia(mediaID string) []*models.TranscodeJobLog {
	var out []*models.TranscodeJobLog
	for _, l := range m.logs {
		if l.MediaID == mediaID {
			out = append(out, l)
		}
	}
	return out
}

// mockBlobStore keeps object metadata and playlist bodies in memory
type mockBlobStore struct {
	objects    map[string]storage.ObjectInfo
	bodies     map[string]string
	presignErr error
	statErr    error
	purgeErr   error
	deleted    []string
	purged     []string
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{objects: map[string]storage.ObjectInfo{}, bodies: map[string]string{}}
}

func (m *mockBlobStore) put(key, contentType string, size int64) {
	m.objects[key] = storage.ObjectInfo{Key: key, Size: size, ContentType: contentType}
}

func (m *mockBlobStore) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error) {
	if m.presignErr != nil {
		return "", time.Time{}, m.presignErr
	}
	return "https://blobs.test/put/" + key, testNow.Add(ttl), nil
}

func (m *mockBlobStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if m.presignErr != nil {
		return "", time.Time{}, m.presignErr
	}
	return "https://blobs.test/get/" + key + "?sig=1", testNow.Add(ttl), nil
}

func (m *mockBlobStore) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	if m.statErr != nil {
		return nil, m.statErr
	}
	info, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &info, nil
}

func (m *mockBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	body, ok := m.bodies[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *mockBlobStore) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func (m *mockBlobStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if m.purgeErr != nil {
		return 0, m.purgeErr
	}
	m.purged = append(m.purged, prefix)
	n := 0
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
			n++
		}
	}
	return n, nil
}

// mockMediaCache records cache traffic
type mockMediaCache struct {
	entries     map[string]*models.Media
	getErr      error
	invalidated []string
}

func newMockMediaCache() *mockMediaCache {
	return &mockMediaCache{entries: map[string]*models.Media{}}
}

func (m *mockMediaCache) Get(ctx context.Context, id string) (*models.Media, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	md, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *md
	return &cp, nil
}

func (m *mockMediaCache) Set(ctx context.Context, media *models.Media) error {
	cp := *media
	m.entries[media.ID] = &cp
	return nil
}

func (m *mockMediaCache) Invalidate(ctx context.Context, id string) error {
	m.invalidated = append(m.invalidated, id)
	delete(m.entries, id)
	return nil
}

// mockTaskEnqueuer captures published asynq tasks
type mockTaskEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (m *mockTaskEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	m.opts = append(m.opts, opts)
	return &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload()}, nil
}

// mockTranscoder is a TranscodeEnqueuer that does not touch the job log
type mockTranscoder struct {
	enqueued []string
	err      error
}

func (m *mockTranscoder) Enqueue(ctx context.Context, media *models.Media) (*models.TranscodeJobLog, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.enqueued = append(m.enqueued, media.ID)
	return &models.TranscodeJobLog{MediaID: media.ID, JobID: fmt.Sprintf("job-%d", len(m.enqueued)), Attempt: len(m.enqueued)}, nil
}

// mockLessonRepository stores lessons and module membership
type mockLessonRepository struct {
	lessons   map[int]*models.Lesson
	modules   map[int]int // module id -> course id
	createErr error
}

func newMockLessonRepository(lessons ...*models.Lesson) *mockLessonRepository {
	m := &mockLessonRepository{lessons: map[int]*models.Lesson{}, modules: map[int]int{}}
	for _, l := range lessons {
		m.lessons[l.ID] = l
		m.modules[l.ModuleID] = l.CourseID
	}
	return m
}

func (m *mockLessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if m.createErr != nil {
		return m.createErr
	}
	lesson.ID = len(m.lessons) + 1
	for m.lessons[lesson.ID] != nil {
		lesson.ID++
	}
	cp := *lesson
	m.lessons[lesson.ID] = &cp
	return nil
}

func (m *mockLessonRepository) UpdateContent(ctx context.Context, id int, content models.LessonContent) error {
	l, ok := m.lessons[id]
	if !ok {
		return apperrors.NotFound("lesson")
	}
	l.Content = content
	return nil
}

func (m *mockLessonRepository) GetByID(ctx context.Context, id int) (*models.Lesson, error) {
	l, ok := m.lessons[id]
	if !ok {
		return nil, apperrors.NotFound("lesson")
	}
	cp := *l
	return &cp, nil
}

func (m *mockLessonRepository) find(match func(*models.Lesson) bool) (*models.Lesson, error) {
	ids := make([]int, 0, len(m.lessons))
	for id := range m.lessons {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if match(m.lessons[id]) {
			cp := *m.lessons[id]
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("lesson")
}

func (m *mockLessonRepository) GetByQuizID(ctx context.Context, quizID int) (*models.Lesson, error) {
	return m.find(func(l *models.Lesson) bool {
		c, ok := l.Content.(models.QuizContent)
		return ok && c.QuizID == quizID
	})
}

func (m *mockLessonRepository) GetByAssignmentID(ctx context.Context, assignmentID int) (*models.Lesson, error) {
	return m.find(func(l *models.Lesson) bool {
		c, ok := l.Content.(models.AssignmentContent)
		return ok && c.AssignmentID == assignmentID
	})
}

func (m *mockLessonRepository) CountByCourse(ctx context.Context, courseID int) (int, error) {
	n := 0
	for _, l := range m.lessons {
		if l.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (m *mockLessonRepository) ModuleBelongsToCourse(ctx context.Context, moduleID, courseID int) (bool, error) {
	c, ok := m.modules[moduleID]
	return ok && c == courseID, nil
}

// mockEnrollmentRepository keys enrollments by user and course
type mockEnrollmentRepository struct {
	enrollments map[[2]int]*models.Enrollment
	updates     int
}

func newMockEnrollmentRepository(enrollments ...*models.Enrollment) *mockEnrollmentRepository {
	m := &mockEnrollmentRepository{enrollments: map[[2]int]*models.Enrollment{}}
	for _, e := range enrollments {
		m.enrollments[[2]int{e.UserID, e.CourseID}] = e
	}
	return m
}

func (m *mockEnrollmentRepository) GetByUserAndCourse(ctx context.Context, userID, courseID int) (*models.Enrollment, error) {
	e, ok := m.enrollments[[2]int{userID, courseID}]
	if !ok {
		return nil, apperrors.NotFound("enrollment")
	}
	cp := *e
	return &cp, nil
}

func (m *mockEnrollmentRepository) UpdateCompletion(ctx context.Context, id int, percentage float64, status models.EnrollmentStatus, now time.Time) error {
	for _, e := range m.enrollments {
		if e.ID == id {
			m.updates++
			e.CompletionPercentage = percentage
			if status == models.EnrollmentStatusCompleted && e.CompletedAt == nil {
				e.CompletedAt = &now
			}
			e.Status = status
			return nil
		}
	}
	return apperrors.NotFound("enrollment")
}

// mockProgressRepository keys progress rows by user and lesson
type mockProgressRepository struct {
	rows     map[[2]int]*models.CourseProgress
	markErr  error
	marks    int
	timeAdds []int
}

func newMockProgressRepository() *mockProgressRepository {
	return &mockProgressRepository{rows: map[[2]int]*models.CourseProgress{}}
}

func (m *mockProgressRepository) row(userID, lessonID, courseID int) *models.CourseProgress {
	key := [2]int{userID, lessonID}
	r, ok := m.rows[key]
	if !ok {
		r = &models.CourseProgress{ID: len(m.rows) + 1, UserID: userID, LessonID: lessonID, CourseID: courseID}
		m.rows[key] = r
	}
	return r
}

func (m *mockProgressRepository) MarkComplete(ctx context.Context, userID, lessonID, courseID int, at time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.marks++
	r := m.row(userID, lessonID, courseID)
	if r.CompletedAt == nil {
		r.CompletedAt = &at
	}
	r.Completed = true
	return nil
}

func (m *mockProgressRepository) AddTimeSpent(ctx context.Context, userID, lessonID, courseID, seconds int) error {
	m.timeAdds = append(m.timeAdds, seconds)
	m.row(userID, lessonID, courseID).TimeSpentSeconds += seconds
	return nil
}

func (m *mockProgressRepository) GetByUserAndLesson(ctx context.Context, userID, lessonID int) (*models.CourseProgress, error) {
	r, ok := m.rows[[2]int{userID, lessonID}]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *mockProgressRepository) CountCompletedByCourse(ctx context.Context, userID, courseID int) (int, error) {
	n := 0
	for _, r := range m.rows {
		if r.UserID == userID && r.CourseID == courseID && r.Completed {
			n++
		}
	}
	return n, nil
}

// mockSessionRepository applies heartbeats with the same monotonic merge as the database
type mockSessionRepository struct {
	sessions map[string]*models.PlaybackSession
}

func newMockSessionRepository(sessions ...*models.PlaybackSession) *mockSessionRepository {
	m := &mockSessionRepository{sessions: map[string]*models.PlaybackSession{}}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return m
}

func (m *mockSessionRepository) Create(ctx context.Context, session *models.PlaybackSession) error {
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *mockSessionRepository) GetByID(ctx context.Context, id string) (*models.PlaybackSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("playback session")
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionRepository) FindOpen(ctx context.Context, userID, lessonID int, now time.Time) (*models.PlaybackSession, error) {
	for _, s := range m.sessions {
		if s.UserID == userID && s.LessonID == lessonID && s.IsOpen(now) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockSessionRepository) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	if s, ok := m.sessions[id]; ok && expiresAt.After(s.ExpiresAt) {
		s.ExpiresAt = expiresAt
	}
	return nil
}

func (m *mockSessionRepository) ApplyHeartbeat(ctx context.Context, id string, reported models.SessionProgress, now, expiresAt time.Time) (models.SessionProgress, models.SessionProgress, error) {
	s, ok := m.sessions[id]
	if !ok {
		return models.SessionProgress{}, models.SessionProgress{}, apperrors.NotFound("playback session")
	}
	if s.EndedAt != nil {
		return models.SessionProgress{}, models.SessionProgress{}, apperrors.Conflict("playback session has ended")
	}
	before := models.SessionProgress{WatchTimeSeconds: s.WatchTimeSeconds, CompletionRate: s.CompletionRate}
	after := before.Merge(reported)
	s.WatchTimeSeconds, s.CompletionRate = after.WatchTimeSeconds, after.CompletionRate
	s.LastHeartbeatAt = now
	if expiresAt.After(s.ExpiresAt) {
		s.ExpiresAt = expiresAt
	}
	return before, after, nil
}

func (m *mockSessionRepository) End(ctx context.Context, id string, now time.Time) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.EndedAt != nil {
		return false, nil
	}
	s.EndedAt = &now
	return true, nil
}

func (m *mockSessionRepository) ExpireIdle(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, s := range m.sessions {
		if s.EndedAt == nil && !now.Before(s.ExpiresAt) {
			ended := s.ExpiresAt
			s.EndedAt = &ended
			n++
		}
	}
	return n, nil
}

// mockCourseRepository knows which courses exist and who authored them
type mockCourseRepository struct {
	authors map[int]int
}

func (m *mockCourseRepository) Exists(ctx context.Context, id int) (bool, error) {
	_, ok := m.authors[id]
	return ok, nil
}

func (m *mockCourseRepository) CheckOwnership(ctx context.Context, id, tutorID int) (bool, error) {
	author, ok := m.authors[id]
	return ok && author == tutorID, nil
}

// mockQuizRepository stores quizzes and attempts
type mockQuizRepository struct {
	quizzes  map[int]*models.Quiz
	attempts []models.QuizAttempt
}

func newMockQuizRepository(quizzes ...*models.Quiz) *mockQuizRepository {
	m := &mockQuizRepository{quizzes: map[int]*models.Quiz{}}
	for _, q := range quizzes {
		m.quizzes[q.ID] = q
	}
	return m
}

func (m *mockQuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	quiz.ID = len(m.quizzes) + 1
	for i := range quiz.Questions {
		quiz.Questions[i].ID = quiz.ID*100 + i + 1
		quiz.Questions[i].QuizID = quiz.ID
	}
	m.quizzes[quiz.ID] = quiz
	return nil
}

func (m *mockQuizRepository) GetByID(ctx context.Context, id int) (*models.Quiz, error) {
	q, ok := m.quizzes[id]
	if !ok {
		return nil, apperrors.NotFound("quiz")
	}
	cp := *q
	return &cp, nil
}

func (m *mockQuizRepository) CreateAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *mockQuizRepository) ListAttempts(ctx context.Context, quizID, userID int) ([]models.QuizAttempt, error) {
	var out []models.QuizAttempt
	for i := len(m.attempts) - 1; i >= 0; i-- {
		a := m.attempts[i]
		if a.QuizID == quizID && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// mockAssignmentRepository enforces one submission per user and assignment
type mockAssignmentRepository struct {
	assignments map[int]*models.Assignment
	submissions map[string]*models.AssignmentSubmission
}

func newMockAssignmentRepository(assignments ...*models.Assignment) *mockAssignmentRepository {
	m := &mockAssignmentRepository{assignments: map[int]*models.Assignment{}, submissions: map[string]*models.AssignmentSubmission{}}
	for _, a := range assignments {
		m.assignments[a.ID] = a
	}
	return m
}

func (m *mockAssignmentRepository) GetByID(ctx context.Context, id int) (*models.Assignment, error) {
	a, ok := m.assignments[id]
	if !ok {
		return nil, apperrors.NotFound("assignment")
	}
	cp := *a
	return &cp, nil
}

func (m *mockAssignmentRepository) CreateSubmission(ctx context.Context, submission *models.AssignmentSubmission) error {
	for _, s := range m.submissions {
		if s.AssignmentID == submission.AssignmentID && s.UserID == submission.UserID {
			return apperrors.Conflict("a submission already exists for assignment %d", submission.AssignmentID)
		}
	}
	cp := *submission
	m.submissions[submission.ID] = &cp
	return nil
}

func (m *mockAssignmentRepository) GetSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error) {
	s, ok := m.submissions[id]
	if !ok {
		return nil, apperrors.NotFound("submission")
	}
	cp := *s
	return &cp, nil
}

func (m *mockAssignmentRepository) GetSubmissionByAssignmentAndUser(ctx context.Context, assignmentID, userID int) (*models.AssignmentSubmission, error) {
	for _, s := range m.submissions {
		if s.AssignmentID == assignmentID && s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("submission")
}

func (m *mockAssignmentRepository) MarkSubmitted(ctx context.Context, id string, at time.Time) (bool, error) {
	s, ok := m.submissions[id]
	if !ok || s.Status != models.SubmissionStatusPendingUpload {
		return false, nil
	}
	s.Status = models.SubmissionStatusSubmitted
	s.SubmittedAt = &at
	return true, nil
}

func (m *mockAssignmentRepository) Grade(ctx context.Context, id string, marks int, feedback string, gradedBy int, at time.Time) (bool, error) {
	s, ok := m.submissions[id]
	if !ok || s.Status != models.SubmissionStatusSubmitted {
		return false, nil
	}
	s.Status = models.SubmissionStatusGraded
	s.Marks = &marks
	s.Feedback = feedback
	s.GradedBy = &gradedBy
	s.GradedAt = &at
	return true, nil
}

// mockAlerter records sent alerts
type mockAlerter struct {
	subjects []string
	err      error
}

func (m *mockAlerter) SendAlert(ctx context.Context, subject, body string) error {
	m.subjects = append(m.subjects, subject)
	return m.err
}
