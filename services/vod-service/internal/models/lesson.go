package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// LessonKind tags the content variant of a lesson
type LessonKind string

const (
	LessonKindVideo      LessonKind = "VIDEO"
	LessonKindArticle    LessonKind = "ARTICLE"
	LessonKindQuiz       LessonKind = "QUIZ"
	LessonKindMCQ        LessonKind = "MCQ"
	LessonKindAssignment LessonKind = "ASSIGNMENT"
	LessonKindAR         LessonKind = "AR"
	LessonKindLive       LessonKind = "LIVE"
)

// LessonContent is the kind-specific part of a lesson. Implementations are
// VideoContent, QuizContent, AssignmentContent, BodyContent and LiveContent.
type LessonContent interface {
	Kind() LessonKind
	fields() LessonContentInput
}

// VideoContent references a transcoded media, a legacy direct URL, or both
type VideoContent struct {
	MediaID   *string
	LegacyURL string
}

// QuizContent references the quiz that grades the lesson. MCQ lessons are quizzes too.
type QuizContent struct {
	QuizID int
	MCQ    bool
}

// AssignmentContent references the assignment submitted for the lesson
type AssignmentContent struct {
	AssignmentID int
}

// BodyContent carries the body of an article or AR lesson
type BodyContent struct {
	Body string
	AR   bool
}

// LiveContent has no structural requirement
type LiveContent struct{}

func (VideoContent) Kind() LessonKind      { return LessonKindVideo }
func (AssignmentContent) Kind() LessonKind { return LessonKindAssignment }
func (LiveContent) Kind() LessonKind       { return LessonKindLive }

func (c QuizContent) Kind() LessonKind {
	if c.MCQ {
		return LessonKindMCQ
	}
	return LessonKindQuiz
}

func (c BodyContent) Kind() LessonKind {
	if c.AR {
		return LessonKindAR
	}
	return LessonKindArticle
}

// VideoSource is what a player should load for a video lesson
type VideoSource struct {
	ManifestKey string
	LegacyURL   string
}

// IsLegacy reports whether the source is a raw URL rather than a transcoded manifest
func (s VideoSource) IsLegacy() bool {
	return s.ManifestKey == ""
}

// Source prefers the manifest of a READY media and falls back to the legacy URL
func (c VideoContent) Source(media *Media) VideoSource {
	if media != nil && media.Status == MediaStatusReady && media.ManifestKey != "" {
		return VideoSource{ManifestKey: media.ManifestKey}
	}
	return VideoSource{LegacyURL: c.LegacyURL}
}

// LessonContentInput carries the nullable columns a lesson row or request may set
type LessonContentInput struct {
	MediaID      *string
	VideoURL     string
	QuizID       *int
	AssignmentID *int
	Body         string
}

func (c VideoContent) fields() LessonContentInput {
	return LessonContentInput{MediaID: c.MediaID, VideoURL: c.LegacyURL}
}

func (c QuizContent) fields() LessonContentInput {
	id := c.QuizID
	return LessonContentInput{QuizID: &id}
}

func (c AssignmentContent) fields() LessonContentInput {
	id := c.AssignmentID
	return LessonContentInput{AssignmentID: &id}
}

func (c BodyContent) fields() LessonContentInput {
	return LessonContentInput{Body: c.Body}
}

func (LiveContent) fields() LessonContentInput {
	return LessonContentInput{}
}

// Fields returns the flat column values of a lesson content for persistence
func Fields(c LessonContent) LessonContentInput {
	return c.fields()
}

// NewLessonContent validates that the kind has the reference it requires and builds the variant
func NewLessonContent(kind LessonKind, in LessonContentInput) (LessonContent, error) {
	switch kind {
	case LessonKindVideo:
		hasMedia := in.MediaID != nil && strings.TrimSpace(*in.MediaID) != ""
		legacy := strings.TrimSpace(in.VideoURL)
		if !hasMedia && legacy == "" {
			return nil, errors.New("video lesson requires a mediaId or a videoUrl")
		}
		if legacy != "" {
			if u, err := url.Parse(legacy); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, fmt.Errorf("videoUrl %q is not an absolute http(s) URL", legacy)
			}
		}
		content := VideoContent{LegacyURL: legacy}
		if hasMedia {
			id := strings.TrimSpace(*in.MediaID)
			content.MediaID = &id
		}
		return content, nil
	case LessonKindQuiz, LessonKindMCQ:
		if in.QuizID == nil || *in.QuizID <= 0 {
			return nil, fmt.Errorf("%s lesson requires a quizId", strings.ToLower(string(kind)))
		}
		return QuizContent{QuizID: *in.QuizID, MCQ: kind == LessonKindMCQ}, nil
	case LessonKindAssignment:
		if in.AssignmentID == nil || *in.AssignmentID <= 0 {
			return nil, errors.New("assignment lesson requires an assignmentId")
		}
		return AssignmentContent{AssignmentID: *in.AssignmentID}, nil
	case LessonKindArticle, LessonKindAR:
		if strings.TrimSpace(in.Body) == "" {
			return nil, fmt.Errorf("%s lesson requires content", strings.ToLower(string(kind)))
		}
		return BodyContent{Body: in.Body, AR: kind == LessonKindAR}, nil
	case LessonKindLive:
		return LiveContent{}, nil
	}
	return nil, fmt.Errorf("unknown lesson kind %q", kind)
}

// Lesson represents a lesson in a course module
type Lesson struct {
	ID       int
	CourseID int
	ModuleID int
	Title    string
	Order    int
	Content  LessonContent
}

// Kind returns the lesson kind
func (l *Lesson) Kind() LessonKind {
	return l.Content.Kind()
}

type lessonJSON struct {
	ID           int        `json:"id"`
	CourseID     int        `json:"courseId"`
	ModuleID     int        `json:"moduleId"`
	Title        string     `json:"title"`
	Order        int        `json:"order"`
	Kind         LessonKind `json:"kind"`
	MediaID      *string    `json:"mediaId,omitempty"`
	VideoURL     string     `json:"videoUrl,omitempty"`
	QuizID       *int       `json:"quizId,omitempty"`
	AssignmentID *int       `json:"assignmentId,omitempty"`
	Content      string     `json:"content,omitempty"`
}

// MarshalJSON flattens the content variant into the wire shape
func (l Lesson) MarshalJSON() ([]byte, error) {
	out := lessonJSON{ID: l.ID, CourseID: l.CourseID, ModuleID: l.ModuleID, Title: l.Title, Order: l.Order}
	if l.Content != nil {
		f := l.Content.fields()
		out.Kind = l.Content.Kind()
		out.MediaID, out.VideoURL, out.QuizID, out.AssignmentID, out.Content = f.MediaID, f.VideoURL, f.QuizID, f.AssignmentID, f.Body
	}
	return json.Marshal(out)
}

// CreateLessonRequest represents a request to create a lesson
type CreateLessonRequest struct {
	CourseID     int        `json:"courseId" validate:"required,gt=0"`
	ModuleID     int        `json:"moduleId" validate:"required,gt=0"`
	Title        string     `json:"title" validate:"required,max=255"`
	Order        int        `json:"order" validate:"gte=0"`
	Kind         LessonKind `json:"kind" validate:"required,oneof=VIDEO ARTICLE QUIZ MCQ ASSIGNMENT AR LIVE"`
	MediaID      *string    `json:"mediaId,omitempty"`
	VideoURL     string     `json:"videoUrl,omitempty"`
	QuizID       *int       `json:"quizId,omitempty"`
	AssignmentID *int       `json:"assignmentId,omitempty"`
	Content      string     `json:"content,omitempty"`
}

// ContentInput extracts the content columns of the request
func (r *CreateLessonRequest) ContentInput() LessonContentInput {
	return LessonContentInput{MediaID: r.MediaID, VideoURL: r.VideoURL, QuizID: r.QuizID, AssignmentID: r.AssignmentID, Body: r.Content}
}

// UpdateLessonContentRequest replaces the kind and content of a lesson.
// Changing the kind re-validates the reference the new kind requires.
type UpdateLessonContentRequest struct {
	Kind         LessonKind `json:"kind" validate:"required,oneof=VIDEO ARTICLE QUIZ MCQ ASSIGNMENT AR LIVE"`
	MediaID      *string    `json:"mediaId,omitempty"`
	VideoURL     string     `json:"videoUrl,omitempty"`
	QuizID       *int       `json:"quizId,omitempty"`
	AssignmentID *int       `json:"assignmentId,omitempty"`
	Content      string     `json:"content,omitempty"`
}

// ContentInput extracts the content columns of the request
func (r *UpdateLessonContentRequest) ContentInput() LessonContentInput {
	return LessonContentInput{MediaID: r.MediaID, VideoURL: r.VideoURL, QuizID: r.QuizID, AssignmentID: r.AssignmentID, Body: r.Content}
}
