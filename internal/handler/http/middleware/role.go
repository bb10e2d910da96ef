package middleware

import (
	"fmt"
	"net/http"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/user"
	"github.com/cmlabs-hris/salary-engine-go/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

func roleFromRequest(r *http.Request) (user.Role, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", false
	}
	role, ok := claims["role"].(string)
	return user.Role(role), ok && role != ""
}

// RequirePermission rejects callers whose role lacks permission.
func RequirePermission(permission user.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := roleFromRequest(r)
			if !ok {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s'", permission))
				return
			}
			if !user.HasPermission(role, permission) {
				response.Forbidden(w, fmt.Sprintf("Role '%s' lacks permission '%s'", role, permission))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
