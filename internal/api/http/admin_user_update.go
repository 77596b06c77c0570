package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/learnhub/learnhub-lms/internal/auth/middleware"
)

type updateUserRoleReq struct {
	Role string `json:"role" validate:"required,oneof=student admin"`
}

// PUT /users/{userID}/role
func AdminUpdateUserRoleHandler(users *auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateUserRoleReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		if err := users.SetRole(r.Context(), chi.URLParam(r, "userID"), req.Role); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
