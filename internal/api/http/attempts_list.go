package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/learnhub/learnhub-lms/internal/attempt"
	"github.com/learnhub/learnhub-lms/internal/rbac"
)

// GET /attempts?quizId=...&userId=...&completed=true&limit=50&offset=0
// RBAC:
// - attempt:view-all lists any filters
// - everyone else only sees their own attempts (userId is forced to subject)
func ListAttemptsHandler(attempts *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := rbac.PrincipalFromContext(r.Context())
		q := r.URL.Query()

		opts := attempt.ListOpts{
			QuizID: strings.TrimSpace(q.Get("quizId")),
			UserID: strings.TrimSpace(q.Get("userId")),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		}
		if v, err := strconv.ParseBool(q.Get("completed")); err == nil {
			opts.Completed = &v
		}
		if !p.Can(rbac.PermAttemptViewAll) {
			opts.UserID = p.Subject
		}

		list, err := attempts.ListAttempts(r.Context(), opts)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
