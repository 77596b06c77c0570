package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learnhub/learnhub-lms/internal/apperr"
	auth "github.com/learnhub/learnhub-lms/internal/auth/middleware"
	"github.com/learnhub/learnhub-lms/internal/rbac"
)

type registerReq struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type registerResp struct {
	User        auth.User `json:"user"`
	AccessToken string    `json:"access_token"`
}

// POST /auth/register
// Self sign-up. New accounts are always students and are signed in at once.
func RegisterHandler(a *auth.AuthService, users *auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		u, err := users.Register(r.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			respondError(w, r, err)
			return
		}
		tok, err := a.IssueJWT(u.ID, u.Role)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, registerResp{User: u, AccessToken: tok})
	}
}

// GET /auth/me
// The configured bootstrap admin has no users row and is described from
// the token alone.
func MeHandler(users *auth.UserStore, admin auth.AdminLogin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.Caller(r)
		u, err := users.FindByID(r.Context(), p.Subject)
		if errors.Is(err, apperr.ErrNotFound) && admin.User != "" && p.Subject == admin.User {
			respondJSON(w, http.StatusOK, auth.User{ID: p.Subject, Email: admin.User, Role: rbac.RoleAdmin})
			return
		}
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, u)
	}
}

// GET /users/{userID}
func GetUserHandler(users *auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.FindByID(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, u)
	}
}
