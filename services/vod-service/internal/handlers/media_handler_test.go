package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/libs/auth/service"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testMediaID = "4b9c1f0e-8d4a-4c55-9e0b-2f6a7d3c1e90"

func mediaRouter(identity *service.Identity, media *mockMediaService, transcode *mockTranscodeService) http.Handler {
	h := NewMediaHandler(media, transcode, zap.NewNop())
	return newTestRouter(identity, func(r chi.Router) {
		h.RegisterRoutes(r)
		h.RegisterAdminRoutes(r)
		h.RegisterInternalRoutes(r)
	})
}

func TestMediaHandler_Presign(t *testing.T) {
	expiresAt := time.Date(2026, 3, 10, 12, 15, 0, 0, time.UTC)

	tests := []struct {
		name           string
		identity       *service.Identity
		body           string
		service        *mockMediaService
		expectedStatus int
		expectedError  string
	}{
		{
			name:     "grant issued",
			identity: tutor,
			body:     `{"fileName":"lecture.mp4","mimeType":"video/mp4","fileSize":1048576}`,
			service: &mockMediaService{grant: &models.UploadGrant{
				UploadURL: "https://blobs.test/put", MediaID: testMediaID, ExpiresAt: expiresAt,
			}},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing identity",
			body:           `{"fileName":"lecture.mp4","mimeType":"video/mp4","fileSize":1}`,
			service:        &mockMediaService{},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing mime type",
			identity:       tutor,
			body:           `{"fileName":"lecture.mp4","fileSize":1}`,
			service:        &mockMediaService{},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "mimeType is required",
		},
		{
			name:           "zero size",
			identity:       tutor,
			body:           `{"fileName":"lecture.mp4","mimeType":"video/mp4","fileSize":0}`,
			service:        &mockMediaService{},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "fileSize must be at least 1",
		},
		{
			name:           "malformed json",
			identity:       tutor,
			body:           `{"fileName":`,
			service:        &mockMediaService{},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
		{
			name:           "service rejects type",
			identity:       tutor,
			body:           `{"fileName":"run.exe","mimeType":"application/x-msdownload","fileSize":10}`,
			service:        &mockMediaService{err: apperrors.Validation("mime type %q is not allowed", "application/x-msdownload")},
			expectedStatus: http.StatusBadRequest,
			expectedError:  `mime type "application/x-msdownload" is not allowed`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := mediaRouter(tt.identity, tt.service, &mockTranscodeService{})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/media/presign", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusCreated {
				var grant models.UploadGrant
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grant))
				assert.Equal(t, testMediaID, grant.MediaID)
				assert.Equal(t, tutor.UserID, tt.service.callerID)
			}
			if tt.expectedError != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.expectedError, body["error"])
			}
		})
	}
}

func TestMediaHandler_CompleteUpload(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		service        *mockMediaService
		expectedStatus int
	}{
		{
			name:           "processing",
			body:           `{"mediaId":"` + testMediaID + `"}`,
			service:        &mockMediaService{media: &models.Media{ID: testMediaID, Status: models.MediaStatusProcessing}},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "media id must be a uuid",
			body:           `{"mediaId":"abc"}`,
			service:        &mockMediaService{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "another uploader",
			body:           `{"mediaId":"` + testMediaID + `"}`,
			service:        &mockMediaService{err: apperrors.Authorization("only the uploader can complete this upload")},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "unknown media",
			body:           `{"mediaId":"` + testMediaID + `"}`,
			service:        &mockMediaService{err: apperrors.NotFound("media")},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := mediaRouter(tutor, tt.service, &mockTranscodeService{})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/media/complete", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestMediaHandler_DeleteMedia(t *testing.T) {
	svc := &mockMediaService{}
	router := mediaRouter(admin, svc, &mockTranscodeService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/media/"+testMediaID, nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, admin.UserID, svc.callerID)
	assert.True(t, svc.isAdmin)
}

func TestMediaHandler_GetMedia(t *testing.T) {
	svc := &mockMediaService{media: &models.Media{ID: testMediaID, Status: models.MediaStatusReady, Thumbnails: []string{}}}
	router := mediaRouter(learner, svc, &mockTranscodeService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/media/"+testMediaID, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var media models.Media
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &media))
	assert.Equal(t, models.MediaStatusReady, media.Status)
}

func TestMediaHandler_RetryTranscode(t *testing.T) {
	tests := []struct {
		name           string
		transcode      *mockTranscodeService
		expectedStatus int
	}{
		{
			name:           "requeued",
			transcode:      &mockTranscodeService{job: &models.TranscodeJobLog{MediaID: testMediaID, Attempt: 2, Status: models.TranscodeJobStatusQueued}},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "not failed",
			transcode:      &mockTranscodeService{err: apperrors.Conflict("media is READY, only FAILED media can be retried")},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := mediaRouter(admin, &mockMediaService{}, tt.transcode)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/media/"+testMediaID+"/transcode/retry", nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestMediaHandler_TranscodeCallback(t *testing.T) {
	const jobID = "9a1d3c6e-2b7f-4e8a-9c0d-1f2e3a4b5c6d"

	tests := []struct {
		name           string
		body           string
		transcode      *mockTranscodeService
		expectedStatus int
	}{
		{
			name:           "success result",
			body:           `{"jobId":"` + jobID + `","mediaId":"` + testMediaID + `","output":{"manifestKey":"media/` + testMediaID + `/hls/master.m3u8","durationSeconds":61.5}}`,
			transcode:      &mockTranscodeService{},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "failure result",
			body:           `{"jobId":"` + jobID + `","mediaId":"` + testMediaID + `","error":"ffmpeg exited 1"}`,
			transcode:      &mockTranscodeService{},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "missing job id",
			body:           `{"mediaId":"` + testMediaID + `"}`,
			transcode:      &mockTranscodeService{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown job",
			body:           `{"jobId":"` + jobID + `","mediaId":"` + testMediaID + `","error":"x"}`,
			transcode:      &mockTranscodeService{err: apperrors.NotFound("transcode job")},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := mediaRouter(nil, &mockMediaService{}, tt.transcode)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/transcode/callback", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusNoContent {
				require.NotNil(t, tt.transcode.result)
				assert.Equal(t, jobID, tt.transcode.result.JobID)
			}
		})
	}
}
