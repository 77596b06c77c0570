package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/learnhub-lms/internal/apperr"
	"github.com/learnhub/learnhub-lms/internal/catalog"
	"github.com/learnhub/learnhub-lms/internal/grading"
	"github.com/learnhub/learnhub-lms/internal/lock"
	"github.com/learnhub/learnhub-lms/internal/progress"
	"github.com/learnhub/learnhub-lms/internal/rbac"
	syncx "github.com/learnhub/learnhub-lms/internal/sync"
)

// Quizzes is the read side of the catalog the ledger needs.
type Quizzes interface {
	GetQuiz(ctx context.Context, id string) (catalog.Quiz, error)
}

type Service struct {
	store   Store
	quizzes Quizzes
	grader  grading.Grader
	locker  lock.Locker
	events  syncx.Appender
	log     *log.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithEvents(e syncx.Appender) Option    { return func(s *Service) { s.events = e } }
func WithLogger(l *log.Logger) Option       { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store Store, quizzes Quizzes, grader grading.Grader, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		store:   store,
		quizzes: quizzes,
		grader:  grader,
		locker:  locker,
		log:     log.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func lockKey(userID, quizID string) string { return "attempt:" + userID + ":" + quizID }

// SubmitAnswer grades and records the answer to question index of quizID.
// The index must equal the number of answers already recorded. The attempt
// is created with its first answer; every later answer is one conditional
// write, so a failed call leaves the ledger as it was.
func (s *Service) SubmitAnswer(ctx context.Context, userID, quizID string, index int, raw json.RawMessage) (Feedback, error) {
	if userID == "" {
		return Feedback{}, fmt.Errorf("%w: user is required", apperr.ErrValidation)
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Feedback{}, err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(userID, quizID))
	if err != nil {
		return Feedback{}, fmt.Errorf("lock attempt: %w", err)
	}
	defer unlock()

	now := s.now().Unix()
	cur, err := s.store.Get(ctx, userID, quizID)
	fresh := errors.Is(err, apperr.ErrNotFound)
	switch {
	case fresh:
		cur = Attempt{ID: uuid.NewString(), UserID: userID, QuizID: quizID, QuizRevision: quiz.Revision, Answers: []Answer{}, StartedAt: now}
	case err != nil:
		return Feedback{}, err
	case cur.QuizRevision != quiz.Revision:
		return Feedback{}, fmt.Errorf("%w: quiz %s was replaced", apperr.ErrInvalidSequence, quizID)
	}

	if index != cur.QuestionsAnswered {
		return Feedback{}, fmt.Errorf("%w: expected question %d, got %d", apperr.ErrInvalidSequence, cur.QuestionsAnswered, index)
	}
	q, ok := quiz.Question(index)
	if !ok || q.CorrectAnswer == nil {
		return Feedback{}, fmt.Errorf("%w: question %d of quiz %s", apperr.ErrNotFound, index, quizID)
	}

	res, err := s.grader.Grade(ctx, grading.Q{Points: q.Value, Key: *q.CorrectAnswer}, raw)
	if err != nil {
		return Feedback{}, err
	}

	next := cur.withAnswer(Answer{
		QuestionIndex: index,
		Correct:       res.Correct,
		Points:        res.Points,
		Value:         append(json.RawMessage(nil), raw...),
		AnsweredAt:    now,
	}, len(quiz.Questions))

	if fresh {
		err = s.store.Insert(ctx, next)
	} else {
		err = s.store.Update(ctx, next, cur.QuestionsAnswered)
	}
	if err != nil {
		return Feedback{}, err
	}

	s.emit(ctx, syncx.TypeAnswerSubmitted, next.ID, map[string]any{
		"userId":            userID,
		"quizId":            quizID,
		"questionIndex":     index,
		"correct":           res.Correct,
		"points":            res.Points,
		"questionsAnswered": next.QuestionsAnswered,
		"completed":         next.Completed,
	})
	return Feedback{Correct: res.Correct, CorrectAnswer: q.CorrectAnswer.Value()}, nil
}

// TakingView is a quiz as presented to the user taking it.
type TakingView struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description,omitempty"`
	Questions       []catalog.Question `json:"questions"`
	MaxScore        float64            `json:"maxScore"`
	CurrentQuestion int                `json:"currentQuestion"`
	CurrentScore    float64            `json:"currentScore"`
	Completed       bool               `json:"completed"`
}

// QuizForTaking returns the quiz with the viewer's position in it. Correct
// answers are only included for viewers allowed to see answer keys.
func (s *Service) QuizForTaking(ctx context.Context, viewer rbac.Principal, quizID string) (TakingView, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return TakingView{}, err
	}
	if !viewer.Can(rbac.PermQuizKeys) {
		quiz = quiz.StudentView()
	}
	v := TakingView{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Questions:   quiz.Questions,
		MaxScore:    quiz.MaxScore,
	}
	a, err := s.store.Get(ctx, viewer.Subject, quizID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		return TakingView{}, err
	default:
		v.CurrentQuestion = a.QuestionsAnswered
		v.CurrentScore = a.CurrentScore
		v.Completed = a.Completed
	}
	return v, nil
}

// Score reports the status and percentage of targetUserID on quizID. An
// empty target means the viewer; other users need the score-any permission.
func (s *Service) Score(ctx context.Context, viewer rbac.Principal, targetUserID, quizID string) (ScoreReport, error) {
	if targetUserID == "" {
		targetUserID = viewer.Subject
	}
	if targetUserID != viewer.Subject && !viewer.Can(rbac.PermScoreAny) {
		return ScoreReport{}, fmt.Errorf("%w: score of another user", apperr.ErrPermission)
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return ScoreReport{}, err
	}
	a, err := s.store.Get(ctx, targetUserID, quizID)
	if errors.Is(err, apperr.ErrNotFound) {
		return ScoreReport{Status: StatusNotAttempted, Percentage: 0}, nil
	}
	if err != nil {
		return ScoreReport{}, err
	}
	return ScoreReport{Status: a.Status(), Percentage: progress.Percentage(a.CurrentScore, quiz.MaxScore)}, nil
}

// ResetQuiz drops every attempt on quizID, letting all users start over on
// the current questions.
func (s *Service) ResetQuiz(ctx context.Context, quizID string) (int64, error) {
	n, err := s.store.DeleteByQuiz(ctx, quizID)
	if err != nil {
		return 0, err
	}
	s.emit(ctx, syncx.TypeQuizReset, quizID, map[string]any{"deleted": n})
	return n, nil
}

// QuizReplaced records that the catalog replaced the question set of q. The
// catalog write already cleared the attempts; answers still in flight for
// the old revision are refused by SubmitAnswer and the store.
func (s *Service) QuizReplaced(ctx context.Context, q catalog.Quiz) {
	s.emit(ctx, syncx.TypeQuizReset, q.ID, map[string]any{"revision": q.Revision})
}

func (s *Service) ListAttempts(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	return s.store.List(ctx, opts)
}

func (s *Service) emit(ctx context.Context, typ, key string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, typ, key, payload); err != nil {
		s.log.Printf("event log: %s %s: %v", typ, key, err)
	}
}
