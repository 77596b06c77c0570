package rbac

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

const (
	PermQuizView         = "quiz:view"
	PermQuizTake         = "quiz:take"
	PermQuizManage       = "quiz:manage"
	PermQuizKeys         = "quiz:keys" // see correct answers while taking
	PermScoreOwn         = "quiz:score-own"
	PermScoreAny         = "quiz:score-any"
	PermAttemptViewAll   = "attempt:view-all"
	PermCourseView       = "course:view"
	PermCourseManage     = "course:manage"
	PermEnrollmentCreate = "enrollment:create"
	PermEnrollmentOwn    = "enrollment:view-own"
	PermEnrollmentAll    = "enrollment:view-all"
	PermLessonComplete   = "lesson:complete"
	PermReportStudents   = "report:students"
	PermUsersUpsert      = "users:upsert"
	PermUsersList        = "users:list"
	PermEventsView       = "events:view"
)

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	RoleStudent: {
		PermQuizView,
		PermQuizTake,
		PermScoreOwn,
		PermCourseView,
		PermEnrollmentCreate,
		PermEnrollmentOwn,
		PermLessonComplete,
	},
	RoleAdmin: {
		"*", // everything
	},
}
