package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// QuestionType represents how a question is answered and graded
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTextAnswer     QuestionType = "TEXT_ANSWER"
)

// Answer is either a single value (option id or text) or a list of option ids.
// On the wire it is a JSON string or a JSON array of strings.
type Answer struct {
	Values []string
	List   bool
}

// SingleAnswer builds a scalar answer
func SingleAnswer(v string) Answer {
	return Answer{Values: []string{v}}
}

// ListAnswer builds a list answer
func ListAnswer(v ...string) Answer {
	return Answer{Values: v, List: true}
}

// IsEmpty reports whether no value was given
func (a Answer) IsEmpty() bool {
	return len(a.Values) == 0
}

// UnmarshalJSON accepts a string or an array of strings
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Answer{}
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = SingleAnswer(single)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = ListAnswer(list...)
		return nil
	}
	return errors.New("answer must be a string or an array of strings")
}

// MarshalJSON writes a string for scalar answers and an array for list answers
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.List {
		if a.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Values)
	}
	if len(a.Values) == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(a.Values[0])
}

// Option is one selectable choice of a question
type Option struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// Question is a graded item of a quiz
type Question struct {
	ID            int          `json:"id"`
	QuizID        int          `json:"quizId"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Points        int          `json:"points"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer *Answer      `json:"correctAnswer,omitempty"`
	Order         int          `json:"order"`
}

// Quiz is a question bank with a passing score
type Quiz struct {
	ID           int        `json:"id"`
	CourseID     int        `json:"courseId"`
	AuthorID     int        `json:"authorId"`
	Title        string     `json:"title"`
	PassingScore int        `json:"passingScore"`
	Questions    []Question `json:"questions"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// WithoutAnswers returns a copy of the quiz safe to show to learners
func (q *Quiz) WithoutAnswers() *Quiz {
	out := *q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.CorrectAnswer = nil
		out.Questions[i] = question
	}
	return &out
}

// QuestionResult is the grading outcome of one question
type QuestionResult struct {
	QuestionID   int  `json:"questionId"`
	Correct      bool `json:"correct"`
	EarnedPoints int  `json:"earnedPoints"`
	Points       int  `json:"points"`
}

// QuizAttempt is one persisted submission of a quiz
type QuizAttempt struct {
	ID        string           `json:"id"`
	QuizID    int              `json:"quizId"`
	UserID    int              `json:"userId"`
	Answers   map[int]Answer   `json:"answers"`
	Score     int              `json:"score"`
	Passed    bool             `json:"passed"`
	Results   []QuestionResult `json:"results"`
	CreatedAt time.Time        `json:"createdAt"`
}

// QuizSubmissionResult is returned to the learner after grading
type QuizSubmissionResult struct {
	AttemptID string           `json:"attemptId"`
	Score     int              `json:"score"`
	Passed    bool             `json:"passed"`
	Results   []QuestionResult `json:"results"`
}

// CreateQuestionRequest describes one question of a new quiz
type CreateQuestionRequest struct {
	Type          QuestionType `json:"type" validate:"required,oneof=SINGLE_CHOICE MULTIPLE_CHOICE TEXT_ANSWER"`
	Prompt        string       `json:"prompt" validate:"required"`
	Points        int          `json:"points"`
	Options       []Option     `json:"options" validate:"dive"`
	CorrectAnswer Answer       `json:"correctAnswer"`
}

// CreateQuizRequest represents a request to create a quiz
type CreateQuizRequest struct {
	CourseID     int                     `json:"courseId" validate:"required,gt=0"`
	Title        string                  `json:"title"`
	PassingScore int                     `json:"passingScore"`
	Questions    []CreateQuestionRequest `json:"questions" validate:"dive"`
}

// SubmitQuizRequest maps question ids to answers
type SubmitQuizRequest struct {
	Answers map[int]Answer `json:"answers"`
}
