package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learnhub/learnhub-lms/internal/attempt"
	auth "github.com/learnhub/learnhub-lms/internal/auth/middleware"
	"github.com/learnhub/learnhub-lms/internal/catalog"
	"github.com/learnhub/learnhub-lms/internal/enrollment"
	"github.com/learnhub/learnhub-lms/internal/progress"
	"github.com/learnhub/learnhub-lms/internal/rbac"
	syncx "github.com/learnhub/learnhub-lms/internal/sync"
)

type Deps struct {
	DB          *sql.DB
	Auth        *auth.AuthService
	Users       *auth.UserStore
	Catalog     catalog.Store
	Attempts    *attempt.Service
	Enrollments *enrollment.Service
	Reporter    *progress.Reporter
	Events      *syncx.EventRepo

	EnableLocalAuth    bool
	Admin              auth.AdminLogin
	AllowClaimFallback bool // keep token roles for subjects without a user row
}

// MountAPI registers the login route and the JWT-protected API on r.
func MountAPI(r chi.Router, d Deps) {
	if d.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users, d.Admin))
		r.Post("/auth/register", RegisterHandler(d.Auth, d.Users))
	}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		if d.DB != nil {
			pr.Use(auth.AttachRoleFromDB(d.DB, d.AllowClaimFallback))
		}

		pr.Get("/auth/me", MeHandler(d.Users, d.Admin))
		pr.Put("/auth/change-password", ChangePasswordHandler(d.Users))

		pr.With(rbac.Require(rbac.PermUsersUpsert)).Post("/users", UpsertUsersHandler(d.Users))
		pr.With(rbac.Require(rbac.PermUsersUpsert)).Put("/users/{userID}/role", AdminUpdateUserRoleHandler(d.Users))
		pr.With(rbac.Require(rbac.PermUsersList)).Get("/users", ListUsersHandler(d.Users))
		pr.With(rbac.Require(rbac.PermUsersList)).Get("/users/{userID}", GetUserHandler(d.Users))

		pr.With(rbac.Require(rbac.PermCourseView)).Get("/courses", ListCoursesHandler(d.Catalog))
		pr.With(rbac.Require(rbac.PermCourseManage)).Post("/courses", CreateCourseHandler(d.Catalog))
		pr.With(rbac.Require(rbac.PermCourseView)).Get("/courses/{courseID}", GetCourseHandler(d.Catalog))
		pr.With(rbac.Require(rbac.PermCourseManage)).Post("/courses/{courseID}/lessons", CreateLessonHandler(d.Catalog, d.Enrollments))
		pr.With(rbac.Require(rbac.PermCourseManage)).Put("/courses/{courseID}/lessons/{lessonID}", UpdateLessonHandler(d.Catalog))
		pr.With(rbac.Require(rbac.PermCourseManage)).Delete("/courses/{courseID}/lessons/{lessonID}", DeleteLessonHandler(d.Catalog, d.Enrollments))

		pr.With(rbac.Require(rbac.PermQuizView)).Get("/quizzes", ListQuizzesHandler(d.Catalog))
		pr.With(rbac.Require(rbac.PermQuizManage)).Put("/quizzes", PutQuizHandler(d.Catalog, d.Attempts))
		pr.With(rbac.Require(rbac.PermQuizTake)).Get("/quizzes/{quizID}", GetQuizForTakingHandler(d.Attempts))
		pr.With(rbac.Require(rbac.PermQuizManage)).Delete("/quizzes/{quizID}/attempts", ResetQuizAttemptsHandler(d.Catalog, d.Attempts))
		pr.With(rbac.Require(rbac.PermQuizTake)).Post("/quizzes/{quizID}/answers", SubmitAnswerHandler(d.Attempts))
		pr.With(rbac.RequireAny(rbac.PermScoreOwn, rbac.PermScoreAny)).
			Get("/quizzes/{quizID}/score", QuizScoreHandler(d.Attempts))

		pr.With(rbac.RequireAny(rbac.PermScoreOwn, rbac.PermAttemptViewAll)).
			Get("/attempts", ListAttemptsHandler(d.Attempts))

		pr.With(rbac.Require(rbac.PermEnrollmentAll)).Get("/enrollments/all", ListEnrollmentsHandler(d.Enrollments))
		pr.With(rbac.Require(rbac.PermReportStudents)).Get("/enrollments/my-students", MyStudentsHandler(d.Reporter))
		pr.With(rbac.Require(rbac.PermEnrollmentOwn)).Get("/enrollments/status/{courseID}", EnrollmentStatusHandler(d.Enrollments))
		pr.With(rbac.Require(rbac.PermEnrollmentCreate)).Post("/enrollments/{courseID}", EnrollHandler(d.Enrollments))
		pr.With(rbac.Require(rbac.PermLessonComplete)).
			Put("/enrollments/{courseID}/lessons/{lessonID}", ToggleLessonHandler(d.Enrollments))

		if d.Events != nil {
			pr.With(rbac.Require(rbac.PermEventsView)).Get("/admin/events", AuditEventsHandler(d.Events))
		}
	})
}

// Health mounts liveness and readiness probes. ready may be nil.
func Health(r chi.Router, ready func(*http.Request) error) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}
