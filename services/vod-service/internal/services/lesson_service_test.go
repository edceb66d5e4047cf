package services

import (
	"context"
	"testing"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLessonService(lessons *mockLessonRepository, media *mockMediaRepository) *lessonService {
	mediaSvc := newTestMediaService(media, newMockBlobStore(), newMockMediaCache(), &mockTranscoder{})
	quizzes := newMockQuizRepository(threeQuestionQuiz(), &models.Quiz{ID: 2, CourseID: 99})
	assignments := newMockAssignmentRepository(
		&models.Assignment{ID: 1, CourseID: testCourseID, MaxMarks: 10},
		&models.Assignment{ID: 2, CourseID: 99, MaxMarks: 10},
	)
	courses := &mockCourseRepository{authors: map[int]int{testCourseID: testTutor}}
	return NewLessonService(lessons, courses, mediaSvc, quizzes, assignments, zap.NewNop())
}

func TestLessonService_CreateLesson(t *testing.T) {
	pdf := uploadedMedia("application/pdf")
	pdf.ID = "33333333-3333-3333-3333-333333333333"

	tests := []struct {
		name         string
		req          models.CreateLessonRequest
		callerID     int
		isAdmin      bool
		expectedKind apperrors.Kind
	}{
		{
			name:     "video with media",
			req:      models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 1, Title: "Intro", Kind: models.LessonKindVideo, MediaID: ptr(testMediaID)},
			callerID: testTutor,
		},
		{
			name:     "video with legacy url",
			req:      models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 1, Title: "Old", Kind: models.LessonKindVideo, VideoURL: "https://videos.example.com/a.mp4"},
			callerID: testTutor,
		},
		{
			name:     "quiz by admin",
			req:      models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 2, Title: "Check", Kind: models.LessonKindQuiz, QuizID: ptr(1)},
			callerID: 1,
			isAdmin:  true,
		},
		{
			name:     "assignment",
			req:      models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 2, Title: "Homework", Kind: models.LessonKindAssignment, AssignmentID: ptr(1)},
			callerID: testTutor,
		},
		{
			name:     "live",
			req:      models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 2, Title: "Q&A", Kind: models.LessonKindLive},
			callerID: testTutor,
		},
		{
			name:         "video without source",
			req:          models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 1, Title: "Empty", Kind: models.LessonKindVideo},
			callerID:     testTutor,
			expectedKind: apperrors.KindValidation,
		},
		{
			name:         "quiz without quiz id",
			req:          models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 1, Title: "Check", Kind: models.LessonKindMCQ},
			callerID:     testTutor,
			expectedKind: apperrors.KindValidation,
		},
		{
			name:         "article without body",
			req:          models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 1, Title: "Read", Kind: models.LessonKindArticle},
			callerID:     testTutor,
			expectedKind: apperrors.KindValidation,
		},
		{
			name:         "unknown media",
			req:          models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 1, Title: "Intro", Kind: models.LessonKindVideo, MediaID: ptr("44444444-4444-4444-4444-444444444444")},
			callerID:     testTutor,
			expectedKind: apperrors.KindNotFound,
		},
		{
			name:         "media is not a video",
			req:          models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 1, Title: "Intro", Kind: models.LessonKindVideo, MediaID: ptr(pdf.ID)},
			callerID:     testTutor,
			expectedKind: apperrors.KindValidation,
		},
		{
			name:         "quiz of another course",
			req:          models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 1, Title: "Check", Kind: models.LessonKindQuiz, QuizID: ptr(2)},
			callerID:     testTutor,
			expectedKind: apperrors.KindValidation,
		},
		{
			name:         "assignment of another course",
			req:          models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 1, Title: "Homework", Kind: models.LessonKindAssignment, AssignmentID: ptr(2)},
			callerID:     testTutor,
			expectedKind: apperrors.KindValidation,
		},
		{
			name:         "module of another course",
			req:          models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 50, Title: "Stray", Kind: models.LessonKindLive},
			callerID:     testTutor,
			expectedKind: apperrors.KindValidation,
		},
		{
			name:         "another tutor",
			req:          models.CreateLessonRequest{CourseID: testCourseID, ModuleID: 1, Title: "Stray", Kind: models.LessonKindLive},
			callerID:     77,
			expectedKind: apperrors.KindAuthorization,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lessons := newMockLessonRepository(mixedCourseLessons()...)
			svc := newTestLessonService(lessons, newMockMediaRepository(readyMedia(), pdf))

			lesson, err := svc.CreateLesson(context.Background(), &tt.req, tt.callerID, tt.isAdmin)

			if tt.expectedKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedKind, apperrors.KindOf(err))
				assert.Len(t, lessons.lessons, 5)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.req.Kind, lesson.Kind())
			assert.Contains(t, lessons.lessons, lesson.ID)
		})
	}
}

func TestLessonService_UpdateContent(t *testing.T) {
	t.Run("switching kind revalidates the reference", func(t *testing.T) {
		lessons := newMockLessonRepository(mixedCourseLessons()...)
		svc := newTestLessonService(lessons, newMockMediaRepository(readyMedia()))

		_, err := svc.UpdateContent(context.Background(), 2, &models.UpdateLessonContentRequest{Kind: models.LessonKindQuiz}, testTutor, false)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

		lesson, err := svc.UpdateContent(context.Background(), 2, &models.UpdateLessonContentRequest{Kind: models.LessonKindQuiz, QuizID: ptr(1)}, testTutor, false)
		require.NoError(t, err)
		assert.Equal(t, models.LessonKindQuiz, lesson.Kind())
		assert.Equal(t, models.QuizContent{QuizID: 1}, lessons.lessons[2].Content)
	})

	t.Run("another tutor", func(t *testing.T) {
		lessons := newMockLessonRepository(mixedCourseLessons()...)
		svc := newTestLessonService(lessons, newMockMediaRepository(readyMedia()))

		_, err := svc.UpdateContent(context.Background(), 2, &models.UpdateLessonContentRequest{Kind: models.LessonKindLive}, 77, false)

		assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
		assert.Equal(t, models.LessonKindArticle, lessons.lessons[2].Kind())
	})

	t.Run("unknown lesson", func(t *testing.T) {
		svc := newTestLessonService(newMockLessonRepository(), newMockMediaRepository())

		_, err := svc.UpdateContent(context.Background(), 9, &models.UpdateLessonContentRequest{Kind: models.LessonKindLive}, testTutor, false)

		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}
