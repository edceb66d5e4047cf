// Package docs registers the OpenAPI document of the VOD service. Regenerate with
// `swag init -g cmd/api/main.go -o docs` from services/vod-service.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/media/presign": {"post": {"tags": ["media"], "summary": "Request an upload URL", "security": [{"BearerAuth": []}]}},
        "/media/complete": {"post": {"tags": ["media"], "summary": "Finalize an upload", "security": [{"BearerAuth": []}]}},
        "/media/{id}": {
            "get": {"tags": ["media"], "summary": "Get media", "security": [{"BearerAuth": []}]},
            "delete": {"tags": ["media"], "summary": "Delete media", "security": [{"BearerAuth": []}]}
        },
        "/admin/media/{id}/jobs": {"get": {"tags": ["admin"], "summary": "List transcode attempts", "security": [{"BearerAuth": []}]}},
        "/admin/media/{id}/transcode/retry": {"post": {"tags": ["admin"], "summary": "Retry a failed transcode", "security": [{"BearerAuth": []}]}},
        "/internal/transcode/callback": {"post": {"tags": ["internal"], "summary": "Report a transcode outcome", "security": [{"ApiKeyAuth": []}]}},
        "/playback/token": {"post": {"tags": ["playback"], "summary": "Authorize playback", "security": [{"BearerAuth": []}]}},
        "/playback/sessions/{id}/heartbeat": {"post": {"tags": ["playback"], "summary": "Report playback progress", "security": [{"BearerAuth": []}]}},
        "/playback/sessions/{id}/end": {"post": {"tags": ["playback"], "summary": "End a playback session", "security": [{"BearerAuth": []}]}},
        "/playback/sessions/{id}/manifest": {"get": {"tags": ["playback"], "summary": "Get a signed HLS playlist", "security": [{"BearerAuth": []}]}},
        "/quizzes": {"post": {"tags": ["quizzes"], "summary": "Create a quiz", "security": [{"BearerAuth": []}]}},
        "/quizzes/{id}": {"get": {"tags": ["quizzes"], "summary": "Get a quiz", "security": [{"BearerAuth": []}]}},
        "/quizzes/{id}/submit": {"post": {"tags": ["quizzes"], "summary": "Submit quiz answers", "security": [{"BearerAuth": []}]}},
        "/quizzes/{id}/attempts": {"get": {"tags": ["quizzes"], "summary": "List own attempts", "security": [{"BearerAuth": []}]}},
        "/assignments/{id}/presign": {"post": {"tags": ["assignments"], "summary": "Request a submission upload URL", "security": [{"BearerAuth": []}]}},
        "/assignments/{id}/submission": {"get": {"tags": ["assignments"], "summary": "Get own submission for an assignment", "security": [{"BearerAuth": []}]}},
        "/assignments/submissions/{id}": {"get": {"tags": ["assignments"], "summary": "Get a submission", "security": [{"BearerAuth": []}]}},
        "/assignments/submissions/{id}/complete": {"post": {"tags": ["assignments"], "summary": "Finalize a submission upload", "security": [{"BearerAuth": []}]}},
        "/assignments/submissions/{id}/grade": {"post": {"tags": ["assignments"], "summary": "Grade a submission", "security": [{"BearerAuth": []}]}},
        "/lessons": {"post": {"tags": ["lessons"], "summary": "Create a lesson", "security": [{"BearerAuth": []}]}},
        "/lessons/{id}/content": {"put": {"tags": ["lessons"], "summary": "Replace lesson content", "security": [{"BearerAuth": []}]}},
        "/lessons/{id}/complete": {"post": {"tags": ["progress"], "summary": "Mark a lesson complete", "security": [{"BearerAuth": []}]}},
        "/courses/{id}/completion": {"get": {"tags": ["progress"], "summary": "Get own course completion", "security": [{"BearerAuth": []}]}},
        "/blobs/{key}": {
            "get": {"tags": ["blobs"], "summary": "Download from a pre-signed URL"},
            "put": {"tags": ["blobs"], "summary": "Upload to a pre-signed URL"}
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"},
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "LearnHub VOD API",
	Description:      "Media uploads, transcoding, playback authorization and course completion",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
