package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/salary-engine-go/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

const invalidTokenMessage = "invalid or expired token"

// AuthRequired rejects requests without a verified access token. It must run after jwtauth.Verifier.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, _, err := jwtauth.FromContext(r.Context())

			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			if token == nil {
				response.Unauthorized(w, invalidTokenMessage)
				return
			}

			claims, err := token.AsMap(r.Context())
			if err != nil {
				response.Unauthorized(w, invalidTokenMessage)
				return
			}
			tokenType, ok := claims["type"].(string)
			if tokenType != "access" || !ok {
				response.Unauthorized(w, invalidTokenMessage)
				return
			}
			if companyID, _ := claims["company_id"].(string); companyID == "" {
				response.Forbidden(w, "Token is not bound to a company")
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
