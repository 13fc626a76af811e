package middleware

import (
	"net/http"
	"os"
	"strings"

	"campusmart-be/internal/auth"
	"campusmart-be/internal/utils"
)

var jwtKey = []byte(os.Getenv("SECRET_KEY"))

// AuthMiddleware resolves the bearer token into a Principal on the context.
// Anonymous requests pass through; per-operation role checks live in the
// services, not here.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		principal, err := auth.ParseToken(tokenStr, jwtKey)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := utils.SetPrincipalContext(r.Context(), *principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
