package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnhub/learnhub-lms/internal/attempt"
	auth "github.com/learnhub/learnhub-lms/internal/auth/middleware"
	"github.com/learnhub/learnhub-lms/internal/catalog"
	"github.com/learnhub/learnhub-lms/internal/db/dbtest"
	"github.com/learnhub/learnhub-lms/internal/enrollment"
	"github.com/learnhub/learnhub-lms/internal/grading"
	"github.com/learnhub/learnhub-lms/internal/lock"
	"github.com/learnhub/learnhub-lms/internal/progress"
	"github.com/learnhub/learnhub-lms/internal/rbac"
	syncx "github.com/learnhub/learnhub-lms/internal/sync"
)

type harness struct {
	t      *testing.T
	router http.Handler
	auth   *auth.AuthService
	events *syncx.EventRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dbh := dbtest.Open(t)
	locker := lock.NewMemoryLocker()
	events := syncx.NewEventRepo(dbh, "test")
	cat := catalog.NewSQLStore(dbh)
	progStore := progress.NewSQLStore(dbh)
	authSvc := auth.NewAuthService("test-secret")

	d := Deps{
		Auth:            authSvc,
		Users:           auth.NewUserStore(dbh).WithCost(bcrypt.MinCost),
		Catalog:         cat,
		Attempts:        attempt.NewService(attempt.NewSQLStore(dbh), cat, grading.NewDefaultGrader(), locker, attempt.WithEvents(events)),
		Enrollments:     enrollment.NewService(enrollment.NewSQLStore(dbh), cat, progress.NewProjector(progStore, locker, events, nil), locker, enrollment.WithEvents(events)),
		Reporter:        progress.NewReporter(progStore),
		Events:          events,
		EnableLocalAuth: true,
	}
	r := chi.NewRouter()
	MountAPI(r, d)
	Health(r, nil)
	return &harness{t: t, router: r, auth: authSvc, events: events}
}

func (h *harness) token(sub, role string) string {
	tok, err := h.auth.IssueJWT(sub, role)
	require.NoError(h.t, err)
	return tok
}

// do sends body (marshalled unless it is a string) and decodes a JSON reply into out.
func (h *harness) do(tok, method, path string, body any, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(h.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

const quizBody = `{
  "id": "quiz-1", "courseId": "%s", "title": "Geo",
  "questions": [
    {"title": "Capital of France?", "type": "multiple-choice", "options": ["Paris","Rome"], "correctAnswer": "Paris"},
    {"title": "Primes", "type": "multiple-answer", "value": 2, "options": ["2","3","4"], "correctAnswer": ["2","3"]}
  ]}`

func (h *harness) seed(admin string) (courseID string, lessonIDs []string) {
	h.t.Helper()
	var c catalog.Course
	require.Equal(h.t, http.StatusCreated, h.do(admin, http.MethodPost, "/courses", map[string]string{"title": "Geography"}, &c))
	for _, title := range []string{"Maps", "Rivers"} {
		var l catalog.Lesson
		require.Equal(h.t, http.StatusCreated, h.do(admin, http.MethodPost, "/courses/"+c.ID+"/lessons", map[string]string{"title": title}, &l))
		lessonIDs = append(lessonIDs, l.ID)
	}
	var q catalog.Quiz
	body := bytes.Replace([]byte(quizBody), []byte("%s"), []byte(c.ID), 1)
	require.Equal(h.t, http.StatusCreated, h.do(admin, http.MethodPut, "/quizzes", string(body), &q))
	require.Equal(h.t, 3.0, q.MaxScore)
	return c.ID, lessonIDs
}

func TestQuizFlow(t *testing.T) {
	h := newHarness(t)
	admin := h.token("root", rbac.RoleAdmin)
	stu := h.token("s1", rbac.RoleStudent)
	h.seed(admin)

	var view attempt.TakingView
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodGet, "/quizzes/quiz-1", nil, &view))
	require.Len(t, view.Questions, 2)
	for _, q := range view.Questions {
		assert.Nil(t, q.CorrectAnswer)
	}
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodGet, "/quizzes/quiz-1", nil, &view))
	require.NotNil(t, view.Questions[1].CorrectAnswer)

	assert.Equal(t, http.StatusConflict, h.do(stu, http.MethodPost, "/quizzes/quiz-1/answers", `{"questionIndex":1,"answer":["2","3"]}`, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(stu, http.MethodPost, "/quizzes/quiz-1/answers", `{"answer":"Paris"}`, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(stu, http.MethodPost, "/quizzes/quiz-1/answers", `{"questionIndex":0,"answer":null}`, nil))
	assert.Equal(t, http.StatusNotFound, h.do(stu, http.MethodPost, "/quizzes/nope/answers", `{"questionIndex":0,"answer":"Paris"}`, nil))

	var fb struct {
		Correct       bool `json:"correct"`
		CorrectAnswer any  `json:"correctAnswer"`
	}
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodPost, "/quizzes/quiz-1/answers", `{"questionIndex":0,"answer":"Paris"}`, &fb))
	assert.True(t, fb.Correct)
	assert.Equal(t, "Paris", fb.CorrectAnswer)

	require.Equal(t, http.StatusOK, h.do(stu, http.MethodPost, "/quizzes/quiz-1/answers", `{"questionIndex":1,"answer":["3","2"]}`, &fb))
	assert.True(t, fb.Correct)
	assert.Equal(t, []any{"2", "3"}, fb.CorrectAnswer)

	var rep attempt.ScoreReport
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodGet, "/quizzes/quiz-1/score", nil, &rep))
	assert.Equal(t, attempt.ScoreReport{Status: attempt.StatusCompleted, Percentage: 100}, rep)

	other := h.token("s2", rbac.RoleStudent)
	assert.Equal(t, http.StatusForbidden, h.do(other, http.MethodGet, "/quizzes/quiz-1/score?userId=s1", nil, nil))
	require.Equal(t, http.StatusOK, h.do(other, http.MethodGet, "/quizzes/quiz-1/score", nil, &rep))
	assert.Equal(t, attempt.StatusNotAttempted, rep.Status)
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodGet, "/quizzes/quiz-1/score?userId=s1", nil, &rep))
	assert.Equal(t, 100.0, rep.Percentage)

	var mine []attempt.Attempt
	require.Equal(t, http.StatusOK, h.do(other, http.MethodGet, "/attempts?userId=s1", nil, &mine))
	assert.Empty(t, mine, "students only list their own attempts")
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodGet, "/attempts?quizId=quiz-1", nil, &mine))
	assert.Len(t, mine, 1)

	events, err := h.events.Since(context.Background(), 0, 100)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	var feed []auditEvent
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodGet, "/admin/events?after=1", nil, &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, syncx.TypeAnswerSubmitted, feed[0].Type)
	assert.Equal(t, http.StatusForbidden, h.do(stu, http.MethodGet, "/admin/events", nil, nil))
}

func TestReplacingQuizResetsAttempts(t *testing.T) {
	h := newHarness(t)
	admin := h.token("root", rbac.RoleAdmin)
	stu := h.token("s1", rbac.RoleStudent)
	courseID, _ := h.seed(admin)

	require.Equal(t, http.StatusOK, h.do(stu, http.MethodPost, "/quizzes/quiz-1/answers", `{"questionIndex":0,"answer":"Rome"}`, nil))

	body := bytes.Replace([]byte(quizBody), []byte("%s"), []byte(courseID), 1)
	var q catalog.Quiz
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodPut, "/quizzes", string(body), &q))

	assert.EqualValues(t, 2, q.Revision)

	var view attempt.TakingView
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodGet, "/quizzes/quiz-1", nil, &view))
	assert.Zero(t, view.CurrentQuestion)

	events, err := h.events.Since(context.Background(), 0, 100)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, syncx.TypeQuizReset, events[len(events)-1].Type)

	assert.Equal(t, http.StatusForbidden, h.do(stu, http.MethodPut, "/quizzes", string(body), nil))

	var list []catalog.QuizSummary
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodGet, "/quizzes?courseId="+courseID, nil, &list))
	assert.Len(t, list, 1)
	assert.Equal(t, http.StatusBadRequest, h.do(stu, http.MethodGet, "/quizzes", nil, nil))
}

func TestEnrollmentFlow(t *testing.T) {
	h := newHarness(t)
	admin := h.token("root", rbac.RoleAdmin)
	stu := h.token("s1", rbac.RoleStudent)
	courseID, lessons := h.seed(admin)

	var st enrollment.Status
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodGet, "/enrollments/status/"+courseID, nil, &st))
	assert.Equal(t, enrollment.Status{CompletedLessons: []string{}}, st)

	path := "/enrollments/" + courseID + "/lessons/" + lessons[0]
	assert.Equal(t, http.StatusNotFound, h.do(stu, http.MethodPut, path, `{"completed":true}`, nil))

	require.Equal(t, http.StatusOK, h.do(stu, http.MethodPost, "/enrollments/"+courseID, nil, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(stu, http.MethodPut, path, `{}`, nil))

	var res enrollment.ToggleResult
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodPut, path, `{"completed":true}`, &res))
	assert.Equal(t, 50.0, res.StudentProgress)
	assert.Equal(t, 50.0, res.CourseProgress)

	var c struct {
		catalog.Course
		Lessons []catalog.Lesson `json:"lessons"`
	}
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodGet, "/courses/"+courseID, nil, &c))
	assert.Equal(t, 50.0, c.Progress)
	assert.Len(t, c.Lessons, 2)

	assert.Equal(t, http.StatusNotFound, h.do(stu, http.MethodPut, "/enrollments/"+courseID+"/lessons/other", `{"completed":true}`, nil))
	assert.Equal(t, http.StatusForbidden, h.do(stu, http.MethodGet, "/enrollments/all", nil, nil))

	var all []enrollment.Listing
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodGet, "/enrollments/all", nil, &all))
	require.Len(t, all, 1)
	assert.Equal(t, "Geography", all[0].CourseTitle)

	var students []progress.StudentSummary
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodGet, "/enrollments/my-students", nil, &students))
	require.Len(t, students, 1)
	assert.Equal(t, "s1", students[0].ID)
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.do("", http.MethodGet, "/quizzes/quiz-1", nil, nil))
	assert.Equal(t, http.StatusOK, h.do("", http.MethodGet, "/healthz", nil, nil))

	// taking a quiz, including reading it for taking, needs quiz:take
	h.seed(h.token("root", rbac.RoleAdmin))
	guest := h.token("g1", "guest")
	assert.Equal(t, http.StatusForbidden, h.do(guest, http.MethodGet, "/quizzes/quiz-1", nil, nil))
	assert.Equal(t, http.StatusForbidden, h.do(guest, http.MethodPost, "/quizzes/quiz-1/answers", `{"questionIndex":0,"answer":"Paris"}`, nil))
}

func TestLessonChangesResyncEnrollments(t *testing.T) {
	h := newHarness(t)
	admin := h.token("root", rbac.RoleAdmin)
	stu := h.token("s1", rbac.RoleStudent)
	courseID, lessons := h.seed(admin)

	require.Equal(t, http.StatusOK, h.do(stu, http.MethodPost, "/enrollments/"+courseID, nil, nil))
	var res enrollment.ToggleResult
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodPut, "/enrollments/"+courseID+"/lessons/"+lessons[0], `{"completed":true}`, &res))
	assert.Equal(t, 50.0, res.StudentProgress)

	var l3 catalog.Lesson
	require.Equal(t, http.StatusCreated, h.do(admin, http.MethodPost, "/courses/"+courseID+"/lessons", `{"title":"Deltas"}`, &l3))
	var st enrollment.Status
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodGet, "/enrollments/status/"+courseID, nil, &st))
	assert.InDelta(t, 100.0/3, st.StudentProgress, 1e-9)

	var up catalog.Lesson
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodPut, "/courses/"+courseID+"/lessons/"+l3.ID, `{"description":"river mouths"}`, &up))
	assert.Equal(t, "Deltas", up.Title)
	assert.Equal(t, "river mouths", up.Description)
	assert.Equal(t, http.StatusForbidden, h.do(stu, http.MethodPut, "/courses/"+courseID+"/lessons/"+l3.ID, `{"title":"x"}`, nil))
	assert.Equal(t, http.StatusNotFound, h.do(admin, http.MethodPut, "/courses/"+courseID+"/lessons/nope", `{"title":"x"}`, nil))

	require.Equal(t, http.StatusNoContent, h.do(admin, http.MethodDelete, "/courses/"+courseID+"/lessons/"+lessons[0], nil, nil))
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodGet, "/enrollments/status/"+courseID, nil, &st))
	assert.Equal(t, enrollment.Status{CompletedLessons: []string{}, StudentProgress: 0}, st)
	assert.Equal(t, http.StatusNotFound, h.do(admin, http.MethodDelete, "/courses/"+courseID+"/lessons/"+lessons[0], nil, nil))

	var c struct {
		catalog.Course
		Lessons []catalog.Lesson `json:"lessons"`
	}
	require.Equal(t, http.StatusOK, h.do(stu, http.MethodGet, "/courses/"+courseID, nil, &c))
	assert.Len(t, c.Lessons, 2)
	assert.Equal(t, 0.0, c.Progress)
}

func TestRegisterAndMe(t *testing.T) {
	h := newHarness(t)
	admin := h.token("root", rbac.RoleAdmin)

	assert.Equal(t, http.StatusBadRequest, h.do("", http.MethodPost, "/auth/register", `{"name":"Ana","email":"ana@x.io","password":"short"}`, nil))

	var reg struct {
		User        auth.User `json:"user"`
		AccessToken string    `json:"access_token"`
	}
	require.Equal(t, http.StatusCreated, h.do("", http.MethodPost, "/auth/register", `{"name":"Ana","email":"ana@x.io","password":"longenough"}`, &reg))
	assert.Equal(t, rbac.RoleStudent, reg.User.Role)
	require.NotEmpty(t, reg.AccessToken)
	assert.Equal(t, http.StatusConflict, h.do("", http.MethodPost, "/auth/register", `{"name":"Ana","email":"ana@x.io","password":"longenough"}`, nil))

	var me auth.User
	require.Equal(t, http.StatusOK, h.do(reg.AccessToken, http.MethodGet, "/auth/me", nil, &me))
	assert.Equal(t, reg.User.ID, me.ID)
	assert.Equal(t, "ana@x.io", me.Email)
	assert.Equal(t, http.StatusNotFound, h.do(admin, http.MethodGet, "/auth/me", nil, nil))

	var got auth.User
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodGet, "/users/"+reg.User.ID, nil, &got))
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, http.StatusNotFound, h.do(admin, http.MethodGet, "/users/nope", nil, nil))
	assert.Equal(t, http.StatusForbidden, h.do(reg.AccessToken, http.MethodGet, "/users/"+reg.User.ID, nil, nil))
}

func TestResetQuizAttempts(t *testing.T) {
	h := newHarness(t)
	admin := h.token("root", rbac.RoleAdmin)
	stu := h.token("s1", rbac.RoleStudent)
	h.seed(admin)

	require.Equal(t, http.StatusOK, h.do(stu, http.MethodPost, "/quizzes/quiz-1/answers", `{"questionIndex":0,"answer":"Paris"}`, nil))
	var out map[string]int64
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodDelete, "/quizzes/quiz-1/attempts", nil, &out))
	assert.EqualValues(t, 1, out["deleted"])
	assert.Equal(t, http.StatusForbidden, h.do(stu, http.MethodDelete, "/quizzes/quiz-1/attempts", nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(admin, http.MethodDelete, "/quizzes/nope/attempts", nil, nil))
}

func TestUsersEndpoints(t *testing.T) {
	h := newHarness(t)
	admin := h.token("root", rbac.RoleAdmin)

	var counts map[string]int
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodPost, "/users",
		`[{"name":"Ana","email":"ana@x.io","password":"secret1"},{"name":"Bo","email":"bo@x.io","password":"secret2","role":"admin"}]`, &counts))
	assert.Equal(t, 2, counts["inserted"])
	assert.Equal(t, http.StatusBadRequest, h.do(admin, http.MethodPost, "/users", `{"name":"","email":"bad"}`, nil))

	csvBody := "name,email,role,password\nCy,cy@x.io,student,pw123456\n"
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodPost, "/users", csvBody, &counts))
	assert.Equal(t, 1, counts["inserted"])

	var users []auth.User
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodGet, "/users?role=student", nil, &users))
	require.Len(t, users, 2)

	var tok map[string]string
	require.Equal(t, http.StatusOK, h.do("", http.MethodPost, "/auth/login", `{"email":"ana@x.io","password":"secret1"}`, &tok))
	ana := tok["access_token"]
	require.NotEmpty(t, ana)
	assert.Equal(t, http.StatusForbidden, h.do(ana, http.MethodGet, "/users", nil, nil))
	assert.Equal(t, http.StatusNoContent, h.do(ana, http.MethodPut, "/auth/change-password", `{"old_password":"secret1","new_password":"secret9"}`, nil))
	assert.Equal(t, http.StatusNoContent, h.do(admin, http.MethodPut, "/users/"+users[0].ID+"/role", `{"role":"admin"}`, nil))
}

func TestStatusOf(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
