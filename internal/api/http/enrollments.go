package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learnhub/learnhub-lms/internal/enrollment"
	"github.com/learnhub/learnhub-lms/internal/progress"
	"github.com/learnhub/learnhub-lms/internal/rbac"
)

// POST /enrollments/{courseID}
func EnrollHandler(svc *enrollment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := svc.Enroll(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "courseID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, e)
	}
}

// GET /enrollments/status/{courseID}
func EnrollmentStatusHandler(svc *enrollment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Status(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "courseID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, st)
	}
}

type toggleLessonReq struct {
	Completed *bool `json:"completed" validate:"required"`
}

// PUT /enrollments/{courseID}/lessons/{lessonID}  {"completed": true}
func ToggleLessonHandler(svc *enrollment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toggleLessonReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		res, err := svc.ToggleLessonCompletion(r.Context(), rbac.SubjectFromContext(r.Context()),
			chi.URLParam(r, "courseID"), chi.URLParam(r, "lessonID"), *req.Completed)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// GET /enrollments/all
func ListEnrollmentsHandler(svc *enrollment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListAll(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /enrollments/my-students
// Students of the caller's courses with their lesson and quiz averages.
func MyStudentsHandler(rep *progress.Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := rep.StudentsOf(r.Context(), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
