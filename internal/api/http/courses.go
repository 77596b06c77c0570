package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learnhub/learnhub-lms/internal/catalog"
	"github.com/learnhub/learnhub-lms/internal/rbac"
)

type createCourseReq struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// POST /courses
// The caller becomes the course owner.
func CreateCourseHandler(cat catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCourseReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		c, err := cat.PutCourse(r.Context(), catalog.Course{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			OwnerID:     rbac.SubjectFromContext(r.Context()),
		})
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, c)
	}
}

type createLessonReq struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// LessonSyncer realigns enrollments with a course's lesson set.
type LessonSyncer interface {
	SyncCourse(ctx context.Context, courseID string) (float64, error)
}

// POST /courses/{courseID}/lessons
// A new lesson lowers every enrolled student's percentage, so enrollments
// and the course average are recomputed before replying.
func CreateLessonHandler(cat catalog.Store, sync LessonSyncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLessonReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		l, err := cat.PutLesson(r.Context(), catalog.Lesson{
			CourseID:    chi.URLParam(r, "courseID"),
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}
		if _, err := sync.SyncCourse(r.Context(), l.CourseID); err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, l)
	}
}

type updateLessonReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// PUT /courses/{courseID}/lessons/{lessonID}
// Only the fields present in the body change.
func UpdateLessonHandler(cat catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateLessonReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		l, err := cat.GetLesson(r.Context(), chi.URLParam(r, "courseID"), chi.URLParam(r, "lessonID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		if req.Title != nil {
			l.Title = *req.Title
		}
		if req.Description != nil {
			l.Description = *req.Description
		}
		l, err = cat.UpdateLesson(r.Context(), l)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, l)
	}
}

// DELETE /courses/{courseID}/lessons/{lessonID}
func DeleteLessonHandler(cat catalog.Store, sync LessonSyncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if err := cat.DeleteLesson(r.Context(), courseID, chi.URLParam(r, "lessonID")); err != nil {
			respondError(w, r, err)
			return
		}
		if _, err := sync.SyncCourse(r.Context(), courseID); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type courseView struct {
	catalog.Course
	Lessons []catalog.Lesson `json:"lessons"`
}

// GET /courses/{courseID}
func GetCourseHandler(cat catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "courseID")
		c, err := cat.GetCourse(r.Context(), id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		lessons, err := cat.ListLessons(r.Context(), id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, courseView{Course: c, Lessons: lessons})
	}
}

// GET /courses
func ListCoursesHandler(cat catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cat.ListCourses(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
