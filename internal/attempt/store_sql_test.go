package attempt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-lms/internal/apperr"
	"github.com/learnhub/learnhub-lms/internal/catalog"
	"github.com/learnhub/learnhub-lms/internal/db/dbtest"
	"github.com/learnhub/learnhub-lms/internal/grading"
	"github.com/learnhub/learnhub-lms/internal/lock"
)

func TestSQLStoreConditionalWrites(t *testing.T) {
	ctx := context.Background()
	dbh := dbtest.Open(t)
	cat := catalog.NewSQLStore(dbh)
	c, err := cat.PutCourse(ctx, catalog.Course{Title: "Geo", OwnerID: "t1"})
	require.NoError(t, err)
	quiz := twoQuestionQuiz(t)
	quiz.CourseID = c.ID
	saved, _, err := cat.PutQuiz(ctx, quiz)
	require.NoError(t, err)

	s := NewSQLStore(dbh)
	_, err = s.Get(ctx, "u1", quiz.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	first := Attempt{ID: "a1", UserID: "u1", QuizID: quiz.ID, QuizRevision: saved.Revision, StartedAt: 10}
	first = first.withAnswer(Answer{QuestionIndex: 0, Correct: true, Points: 1, Value: raw(`"Paris"`), AnsweredAt: 10}, 2)

	old := first
	old.QuizRevision = saved.Revision - 1
	assert.ErrorIs(t, s.Insert(ctx, old), apperr.ErrInvalidSequence)

	require.NoError(t, s.Insert(ctx, first))

	dup := first
	dup.ID = "a2"
	assert.ErrorIs(t, s.Insert(ctx, dup), apperr.ErrInvalidSequence)

	second := first.withAnswer(Answer{QuestionIndex: 1, Points: 0, Value: raw(`false`), AnsweredAt: 11}, 2)
	require.NoError(t, s.Update(ctx, second, 1))
	// a stale writer still expecting one answer loses
	assert.ErrorIs(t, s.Update(ctx, second, 1), apperr.ErrInvalidSequence)

	got, err := s.Get(ctx, "u1", quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.QuestionsAnswered)
	assert.True(t, got.Completed)
	assert.Equal(t, 1.0, got.CurrentScore)
	require.Len(t, got.Answers, 2)
	assert.JSONEq(t, `"Paris"`, string(got.Answers[0].Value))

	done := true
	list, err := s.List(ctx, ListOpts{QuizID: quiz.ID, Completed: &done})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := s.DeleteByQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestServiceOverSQL(t *testing.T) {
	ctx := context.Background()
	dbh := dbtest.Open(t)
	cat := catalog.NewSQLStore(dbh)
	c, err := cat.PutCourse(ctx, catalog.Course{Title: "Geo", OwnerID: "t1"})
	require.NoError(t, err)
	quiz := twoQuestionQuiz(t)
	quiz.CourseID = c.ID
	_, _, err = cat.PutQuiz(ctx, quiz)
	require.NoError(t, err)

	svc := NewService(NewSQLStore(dbh), cat, grading.NewDefaultGrader(), lock.NewMemoryLocker())
	_, err = svc.SubmitAnswer(ctx, "u1", quiz.ID, 0, raw(`"Paris"`))
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, "u1", quiz.ID, 1, raw(`false`))
	require.NoError(t, err)

	rep, err := svc.Score(ctx, student, "", quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, ScoreReport{Status: StatusCompleted, Percentage: 33.33}, rep)

	list, err := svc.ListAttempts(ctx, ListOpts{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, quiz.ID, list[0].QuizID)
	assert.True(t, list[0].Completed)
}

// pinnedQuiz serves one quiz snapshot, as a submission that loaded the quiz
// just before it was replaced would see it.
type pinnedQuiz struct{ q catalog.Quiz }

func (p pinnedQuiz) GetQuiz(context.Context, string) (catalog.Quiz, error) { return p.q, nil }

func TestReplacedQuizRefusesInFlightAnswers(t *testing.T) {
	ctx := context.Background()
	dbh := dbtest.Open(t)
	cat := catalog.NewSQLStore(dbh)
	c, err := cat.PutCourse(ctx, catalog.Course{Title: "Geo", OwnerID: "t1"})
	require.NoError(t, err)
	quiz := twoQuestionQuiz(t)
	quiz.CourseID = c.ID
	v1, _, err := cat.PutQuiz(ctx, quiz)
	require.NoError(t, err)

	store := NewSQLStore(dbh)
	live := NewService(store, cat, grading.NewDefaultGrader(), lock.NewMemoryLocker())
	_, err = live.SubmitAnswer(ctx, "u1", quiz.ID, 0, raw(`"Paris"`))
	require.NoError(t, err)

	v2, existed, err := cat.PutQuiz(ctx, v1)
	require.NoError(t, err)
	require.True(t, existed)
	assert.Equal(t, v1.Revision+1, v2.Revision)
	_, err = store.Get(ctx, "u1", quiz.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "replacing the quiz clears its attempts")

	stale := NewService(store, pinnedQuiz{v1}, grading.NewDefaultGrader(), lock.NewMemoryLocker())
	_, err = stale.SubmitAnswer(ctx, "u2", quiz.ID, 0, raw(`"Paris"`))
	assert.ErrorIs(t, err, apperr.ErrInvalidSequence)
	_, err = store.Get(ctx, "u2", quiz.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = live.SubmitAnswer(ctx, "u2", quiz.ID, 0, raw(`"Paris"`))
	require.NoError(t, err)
	a, err := store.Get(ctx, "u2", quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.Revision, a.QuizRevision)

	// an attempt started on v2 cannot continue against a v1 snapshot
	_, err = stale.SubmitAnswer(ctx, "u2", quiz.ID, 1, raw(`true`))
	assert.ErrorIs(t, err, apperr.ErrInvalidSequence)
}
