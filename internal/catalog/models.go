package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/learnhub/learnhub-lms/internal/apperr"
	"github.com/learnhub/learnhub-lms/internal/grading"
)

type Question struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Type          grading.Kind `json:"type"`
	Value         float64      `json:"value"` // points, defaults to 1
	Options       []string     `json:"options,omitempty"`
	Code          string       `json:"code,omitempty"`
	CorrectAnswer *grading.Key `json:"correctAnswer,omitempty"` // nil in student views
}

// UnmarshalJSON decodes correctAnswer according to the question type.
func (q *Question) UnmarshalJSON(b []byte) error {
	type alias Question
	var aux struct {
		alias
		CorrectAnswer json.RawMessage `json:"correctAnswer"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*q = Question(aux.alias)
	q.CorrectAnswer = nil
	if len(aux.CorrectAnswer) > 0 && string(aux.CorrectAnswer) != "null" {
		k, err := grading.ParseKey(q.Type, aux.CorrectAnswer)
		if err != nil {
			return err
		}
		q.CorrectAnswer = &k
	}
	return nil
}

type Quiz struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"courseId"`
	LessonID    string     `json:"lessonId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
	MaxScore    float64    `json:"maxScore"`
	Revision    int64      `json:"revision,omitempty"` // bumped on every replacement of the question set
	CreatedAt   int64      `json:"createdAt,omitempty"`
	UpdatedAt   int64      `json:"updatedAt,omitempty"`
}

// Normalize validates the quiz, fills defaults and recomputes MaxScore.
// It must run before every write of the question set.
func (q *Quiz) Normalize() error {
	q.Title = strings.TrimSpace(q.Title)
	if q.Title == "" || q.CourseID == "" {
		return fmt.Errorf("%w: title and courseId are required", apperr.ErrValidation)
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	total := 0.0
	for i := range q.Questions {
		qq := &q.Questions[i]
		if err := qq.normalize(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
		total += qq.Value
	}
	q.MaxScore = total
	return nil
}

func (qq *Question) normalize() error {
	if strings.TrimSpace(qq.Title) == "" {
		return fmt.Errorf("%w: title is required", apperr.ErrValidation)
	}
	if !qq.Type.Valid() {
		return fmt.Errorf("%w: unknown question type %q", apperr.ErrValidation, qq.Type)
	}
	if qq.CorrectAnswer == nil {
		return fmt.Errorf("%w: correct answer is required", apperr.ErrValidation)
	}
	if qq.CorrectAnswer.Kind != qq.Type {
		return fmt.Errorf("%w: correct answer is for %s", apperr.ErrValidation, qq.CorrectAnswer.Kind)
	}
	if qq.Value < 0 {
		return fmt.Errorf("%w: negative point value", apperr.ErrValidation)
	}
	if qq.Value == 0 {
		qq.Value = 1
	}
	if qq.Type.HasOptions() {
		if len(qq.Options) == 0 {
			return fmt.Errorf("%w: %s needs options", apperr.ErrValidation, qq.Type)
		}
	} else {
		qq.Options = nil
	}
	if qq.ID == "" {
		qq.ID = uuid.NewString()
	}
	return nil
}

// Question returns the question at index i.
func (q Quiz) Question(i int) (Question, bool) {
	if i < 0 || i >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[i], true
}

// StudentView returns a copy with every correct answer removed.
func (q Quiz) StudentView() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, qq := range q.Questions {
		qq.CorrectAnswer = nil
		out.Questions[i] = qq
	}
	return out
}

type QuizSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Course struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	OwnerID     string  `json:"owner"`
	Category    string  `json:"category,omitempty"`
	Progress    float64 `json:"progress"` // projected average of enrollments
	CreatedAt   int64   `json:"createdAt,omitempty"`
}

type Lesson struct {
	ID          string `json:"id"`
	CourseID    string `json:"courseId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
}
