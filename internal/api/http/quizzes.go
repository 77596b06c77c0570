package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/learnhub/learnhub-lms/internal/apperr"
	"github.com/learnhub/learnhub-lms/internal/attempt"
	auth "github.com/learnhub/learnhub-lms/internal/auth/middleware"
	"github.com/learnhub/learnhub-lms/internal/catalog"
	"github.com/learnhub/learnhub-lms/internal/rbac"
)

// GET /quizzes?courseId=...
func ListQuizzesHandler(cat catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := strings.TrimSpace(r.URL.Query().Get("courseId"))
		if courseID == "" {
			respondError(w, r, fmt.Errorf("%w: courseId query parameter is required", apperr.ErrValidation))
			return
		}
		list, err := cat.ListQuizzes(r.Context(), courseID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// PUT /quizzes
// Creates or replaces a quiz. Replacing an existing quiz's questions clears
// every attempt on it, since recorded answers refer to question positions.
func PutQuizHandler(cat catalog.Store, attempts *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q catalog.Quiz
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			respondError(w, r, fmt.Errorf("%w: %v", apperr.ErrValidation, err))
			return
		}
		saved, existed, err := cat.PutQuiz(r.Context(), q)
		if err != nil {
			respondError(w, r, err)
			return
		}
		status := http.StatusCreated
		if existed {
			status = http.StatusOK
			attempts.QuizReplaced(r.Context(), saved)
		}
		respondJSON(w, status, saved)
	}
}

// DELETE /quizzes/{quizID}/attempts
func ResetQuizAttemptsHandler(cat catalog.Store, attempts *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		if _, err := cat.GetQuiz(r.Context(), id); err != nil {
			respondError(w, r, err)
			return
		}
		n, err := attempts.ResetQuiz(r.Context(), id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}

// GET /quizzes/{quizID}
func GetQuizForTakingHandler(attempts *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := attempts.QuizForTaking(r.Context(), auth.Caller(r), chi.URLParam(r, "quizID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, view)
	}
}

type submitAnswerReq struct {
	QuestionIndex *int            `json:"questionIndex" validate:"required,min=0"`
	Answer        json.RawMessage `json:"answer"`
}

// POST /quizzes/{quizID}/answers  {"questionIndex": 0, "answer": ...}
func SubmitAnswerHandler(attempts *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitAnswerReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		fb, err := attempts.SubmitAnswer(r.Context(), rbac.SubjectFromContext(r.Context()),
			chi.URLParam(r, "quizID"), *req.QuestionIndex, req.Answer)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, fb)
	}
}

// GET /quizzes/{quizID}/score[?userId=...]
func QuizScoreHandler(attempts *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := attempts.Score(r.Context(), auth.Caller(r),
			strings.TrimSpace(r.URL.Query().Get("userId")), chi.URLParam(r, "quizID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, rep)
	}
}
