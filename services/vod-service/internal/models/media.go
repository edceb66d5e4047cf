package models

import (
	"mime"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// MediaStatus represents the lifecycle state of an uploaded asset
type MediaStatus string

const (
	MediaStatusUploaded   MediaStatus = "UPLOADED"
	MediaStatusProcessing MediaStatus = "PROCESSING"
	MediaStatusReady      MediaStatus = "READY"
	MediaStatusFailed     MediaStatus = "FAILED"
)

// mediaTransitions is the complete set of allowed status moves.
// FAILED -> PROCESSING is only taken by an operator retry.
var mediaTransitions = map[MediaStatus][]MediaStatus{
	MediaStatusUploaded:   {MediaStatusProcessing, MediaStatusReady},
	MediaStatusProcessing: {MediaStatusReady, MediaStatusFailed},
	MediaStatusFailed:     {MediaStatusProcessing},
}

// CanTransitionTo reports whether the table allows moving from s to next
func (s MediaStatus) CanTransitionTo(next MediaStatus) bool {
	for _, allowed := range mediaTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transcode outcome can change the status anymore
func (s MediaStatus) IsTerminal() bool {
	return s == MediaStatusReady || s == MediaStatusFailed
}

// IsValid reports whether s is a known status
func (s MediaStatus) IsValid() bool {
	switch s {
	case MediaStatusUploaded, MediaStatusProcessing, MediaStatusReady, MediaStatusFailed:
		return true
	}
	return false
}

// MediaCategory groups allowed mime types under one size ceiling
type MediaCategory string

const (
	MediaCategoryVideo    MediaCategory = "video"
	MediaCategoryDocument MediaCategory = "document"
	MediaCategoryImage    MediaCategory = "image"
	MediaCategoryModel3D  MediaCategory = "model3d"
)

const (
	mb = int64(1) << 20
	gb = int64(1) << 30
)

// MaxSize returns the upload size ceiling for the category in bytes
func (c MediaCategory) MaxSize() int64 {
	switch c {
	case MediaCategoryVideo:
		return 5 * gb
	case MediaCategoryDocument:
		return 100 * mb
	case MediaCategoryImage, MediaCategoryModel3D:
		return 50 * mb
	}
	return 0
}

var allowedMimeTypes = map[string]MediaCategory{
	"video/mp4":        MediaCategoryVideo,
	"video/webm":       MediaCategoryVideo,
	"video/quicktime":  MediaCategoryVideo,
	"video/x-matroska": MediaCategoryVideo,
	"video/x-msvideo":  MediaCategoryVideo,
	"video/mpeg":       MediaCategoryVideo,

	"application/pdf":    MediaCategoryDocument,
	"application/msword": MediaCategoryDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   MediaCategoryDocument,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": MediaCategoryDocument,
	"application/vnd.ms-powerpoint":                                             MediaCategoryDocument,
	"text/plain":                                                                MediaCategoryDocument,

	"image/jpeg": MediaCategoryImage,
	"image/png":  MediaCategoryImage,
	"image/webp": MediaCategoryImage,
	"image/gif":  MediaCategoryImage,

	"model/gltf-binary":  MediaCategoryModel3D,
	"model/gltf+json":    MediaCategoryModel3D,
	"model/obj":          MediaCategoryModel3D,
	"model/stl":          MediaCategoryModel3D,
	"model/vnd.usdz+zip": MediaCategoryModel3D,
	"application/sla":    MediaCategoryModel3D,
}

// NormalizeMimeType lower-cases the type, drops parameters and resolves aliases known to mimetype
// to their canonical name
func NormalizeMimeType(raw string) string {
	mt := strings.ToLower(strings.TrimSpace(raw))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if known := mimetype.Lookup(mt); known != nil {
		if canonical, _, err := mime.ParseMediaType(known.String()); err == nil {
			if _, allowed := allowedMimeTypes[canonical]; allowed {
				mt = canonical
			}
		}
	}
	return mt
}

// CategoryOf returns the category of a normalized mime type, or false when it is not allowed
func CategoryOf(mimeType string) (MediaCategory, bool) {
	c, ok := allowedMimeTypes[NormalizeMimeType(mimeType)]
	return c, ok
}

// Media represents one uploaded asset and its derived transcode outputs
type Media struct {
	ID               string         `json:"id"`
	OriginalFileName string         `json:"originalFileName"`
	StorageKey       string         `json:"storageKey"`
	MimeType         string         `json:"mimeType"`
	Size             int64          `json:"size"`
	Status           MediaStatus    `json:"status"`
	ManifestKey      string         `json:"manifestKey,omitempty"`
	Thumbnails       []string       `json:"thumbnails"`
	DurationSeconds  float64        `json:"durationSeconds,omitempty"`
	Width            int            `json:"width,omitempty"`
	Height           int            `json:"height,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	UploaderID       int            `json:"uploaderId"`
	UploadExpiresAt  time.Time      `json:"uploadExpiresAt"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Category returns the media category derived from its mime type
func (m *Media) Category() MediaCategory {
	c, _ := CategoryOf(m.MimeType)
	return c
}

// IsVideo reports whether the asset needs transcoding
func (m *Media) IsVideo() bool {
	return m.Category() == MediaCategoryVideo
}

// OutputPrefix is where transcode outputs for the media live in the blob store
func (m *Media) OutputPrefix() string {
	return MediaPrefix(m.ID) + "hls/"
}

// MediaPrefix is the blob prefix that holds every object belonging to a media
func MediaPrefix(mediaID string) string {
	return "media/" + mediaID + "/"
}

// MediaStorageKey derives the storage key of an original upload
func MediaStorageKey(mediaID, fileName string) string {
	return MediaPrefix(mediaID) + fileName
}

// TranscodeOutput is the successful result of a transcode job
type TranscodeOutput struct {
	ManifestKey     string   `json:"manifestKey"`
	Thumbnails      []string `json:"thumbnails"`
	DurationSeconds float64  `json:"durationSeconds"`
	Width           int      `json:"width"`
	Height          int      `json:"height"`
}

// TranscodeResult is a worker-reported job outcome: either Output or Error is set
type TranscodeResult struct {
	JobID   string           `json:"jobId" validate:"required,uuid"`
	MediaID string           `json:"mediaId" validate:"required,uuid"`
	Output  *TranscodeOutput `json:"output,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Succeeded reports whether the result carries transcode outputs
func (r *TranscodeResult) Succeeded() bool {
	return r.Error == "" && r.Output != nil && r.Output.ManifestKey != ""
}

// TargetStatus is the media status the result moves to
func (r *TranscodeResult) TargetStatus() MediaStatus {
	if r.Succeeded() {
		return MediaStatusReady
	}
	return MediaStatusFailed
}

// UploadGrant is a pre-signed upload URL for a new media
type UploadGrant struct {
	UploadURL string    `json:"uploadUrl"`
	MediaID   string    `json:"mediaId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PresignUploadRequest represents a request for an upload URL
type PresignUploadRequest struct {
	FileName string `json:"fileName" validate:"required,max=255"`
	MimeType string `json:"mimeType" validate:"required"`
	FileSize int64  `json:"fileSize" validate:"gte=1"`
}

// CompleteUploadRequest represents a request to finalize an upload
type CompleteUploadRequest struct {
	MediaID string `json:"mediaId" validate:"required,uuid"`
}
