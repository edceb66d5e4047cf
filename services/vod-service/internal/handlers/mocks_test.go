package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	authMiddleware "github.com/learnhub/backend/libs/auth/middleware"
	"github.com/learnhub/backend/libs/auth/service"
	"github.com/learnhub/backend/services/vod-service/internal/models"
)

// newTestRouter mounts routes under /api/v1 with identity injected in place of JWT validation
func newTestRouter(identity *service.Identity, register func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		if identity != nil {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					next.ServeHTTP(w, req.WithContext(authMiddleware.WithIdentity(req.Context(), *identity)))
				})
			})
		}
		register(r)
	})
	return r
}

func passThrough(next http.Handler) http.Handler { return next }

var (
	learner = &service.Identity{UserID: 42, Role: service.RoleLearner}
	tutor   = &service.Identity{UserID: 8, Role: service.RoleTutor}
	admin   = &service.Identity{UserID: 1, Role: service.RoleAdmin}
)

type mockMediaService struct {
	grant    *models.UploadGrant
	media    *models.Media
	jobLogs  []models.TranscodeJobLog
	err      error
	callerID int
	isAdmin  bool
}

func (m *mockMediaService) GrantUpload(ctx context.Context, fileName, mimeType string, fileSize int64, uploaderID int) (*models.UploadGrant, error) {
	m.callerID = uploaderID
	return m.grant, m.err
}

func (m *mockMediaService) CompleteUpload(ctx context.Context, mediaID string, uploaderID int) (*models.Media, error) {
	m.callerID = uploaderID
	return m.media, m.err
}

func (m *mockMediaService) GetMedia(ctx context.Context, mediaID string) (*models.Media, error) {
	return m.media, m.err
}

func (m *mockMediaService) Delete(ctx context.Context, mediaID string, callerID int, isAdmin bool) error {
	m.callerID, m.isAdmin = callerID, isAdmin
	return m.err
}

func (m *mockMediaService) ListJobLogs(ctx context.Context, mediaID string) ([]models.TranscodeJobLog, error) {
	return m.jobLogs, m.err
}

type mockTranscodeService struct {
	job    *models.TranscodeJobLog
	err    error
	result *models.TranscodeResult
}

func (m *mockTranscodeService) HandleResult(ctx context.Context, result *models.TranscodeResult) error {
	m.result = result
	return m.err
}

func (m *mockTranscodeService) Retry(ctx context.Context, mediaID string) (*models.TranscodeJobLog, error) {
	return m.job, m.err
}

type mockPlaybackService struct {
	grant     *models.PlaybackGrant
	heartbeat *models.HeartbeatResult
	manifest  []byte
	err       error
	variant   string
	rate      float64
}

func (m *mockPlaybackService) IssuePlaybackGrant(ctx context.Context, mediaID string, userID, lessonID int) (*models.PlaybackGrant, error) {
	return m.grant, m.err
}

func (m *mockPlaybackService) Heartbeat(ctx context.Context, sessionID string, userID, watchTimeSeconds int, completionRate float64) (*models.HeartbeatResult, error) {
	m.rate = completionRate
	return m.heartbeat, m.err
}

func (m *mockPlaybackService) EndSession(ctx context.Context, sessionID string, userID int) error {
	return m.err
}

func (m *mockPlaybackService) RenderManifest(ctx context.Context, sessionID string, userID int, variant string) ([]byte, error) {
	m.variant = variant
	return m.manifest, m.err
}

type mockQuizService struct {
	quiz     *models.Quiz
	result   *models.QuizSubmissionResult
	attempts []models.QuizAttempt
	err      error
	answers  map[int]models.Answer
}

func (m *mockQuizService) CreateQuiz(ctx context.Context, req *models.CreateQuizRequest, authorID int, isAdmin bool) (*models.Quiz, error) {
	return m.quiz, m.err
}

func (m *mockQuizService) GetQuiz(ctx context.Context, quizID, callerID int, isAdmin bool) (*models.Quiz, error) {
	return m.quiz, m.err
}

func (m *mockQuizService) SubmitQuiz(ctx context.Context, quizID, userID int, answers map[int]models.Answer) (*models.QuizSubmissionResult, error) {
	m.answers = answers
	return m.result, m.err
}

func (m *mockQuizService) ListAttempts(ctx context.Context, quizID, userID int) ([]models.QuizAttempt, error) {
	return m.attempts, m.err
}

type mockAssignmentService struct {
	grant      *models.SubmissionGrant
	submission *models.AssignmentSubmission
	err        error
	marks      int
}

func (m *mockAssignmentService) GenerateSubmissionUpload(ctx context.Context, assignmentID, userID int, fileName string) (*models.SubmissionGrant, error) {
	return m.grant, m.err
}

func (m *mockAssignmentService) CompleteSubmissionUpload(ctx context.Context, submissionID string, userID int) (*models.AssignmentSubmission, error) {
	return m.submission, m.err
}

func (m *mockAssignmentService) GradeSubmission(ctx context.Context, submissionID string, graderID int, isAdmin bool, marks int, feedback string) (*models.AssignmentSubmission, error) {
	m.marks = marks
	return m.submission, m.err
}

func (m *mockAssignmentService) GetSubmission(ctx context.Context, submissionID string, userID int) (*models.AssignmentSubmission, error) {
	return m.submission, m.err
}

func (m *mockAssignmentService) GetSubmissionByAssignment(ctx context.Context, assignmentID, userID int) (*models.AssignmentSubmission, error) {
	return m.submission, m.err
}

type mockLessonService struct {
	lesson *models.Lesson
	err    error
}

func (m *mockLessonService) CreateLesson(ctx context.Context, req *models.CreateLessonRequest, callerID int, isAdmin bool) (*models.Lesson, error) {
	return m.lesson, m.err
}

func (m *mockLessonService) UpdateContent(ctx context.Context, lessonID int, req *models.UpdateLessonContentRequest, callerID int, isAdmin bool) (*models.Lesson, error) {
	return m.lesson, m.err
}

type mockCompletionService struct {
	completion *models.CourseCompletion
	err        error
	lessonID   int
}

func (m *mockCompletionService) MarkLessonComplete(ctx context.Context, userID, lessonID int) (*models.CourseCompletion, error) {
	m.lessonID = lessonID
	return m.completion, m.err
}

func (m *mockCompletionService) CalculateCourseCompletion(ctx context.Context, userID, courseID int) (*models.CourseCompletion, error) {
	return m.completion, m.err
}
