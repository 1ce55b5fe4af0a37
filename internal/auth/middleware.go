package auth

import (
	"net/http"
	"strings"

	"github.com/crewdeck-platform/crewdeck/internal/api"
	"github.com/crewdeck-platform/crewdeck/internal/claims"
)

// Middleware validates the bearer token and attaches the verified claims
// to the request context for downstream handlers to read via the claims
// package.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			c, err := svc.jwt.ValidateAccessToken(parts[1])
			if err != nil {
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(claims.NewContext(r.Context(), c)))
		})
	}
}
