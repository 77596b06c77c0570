package auth

import (
	"net/http"

	"github.com/learnhub/learnhub-lms/internal/rbac"
)

// Caller returns the principal JWTMiddleware attached to r.
func Caller(r *http.Request) rbac.Principal {
	return rbac.PrincipalFromContext(r.Context())
}
