package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nacos-mini/nacos-go/internal/core/authtoken"
)

// TokenValidator is the subset of authtoken.Store the middleware needs.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (username string, valid bool, err error)
}

var _ TokenValidator = (*authtoken.Store)(nil)

// AuthMiddleware validates the bearer token carried either in the
// Authorization header ("Bearer <token>") or, matching the Nacos SDK's
// own convention, in the "accessToken" query/form parameter.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, r, "missing access token")
				return
			}

			username, valid, err := validator.Validate(r.Context(), token)
			if err != nil {
				writeUnauthorized(w, r, "token validation failed")
				return
			}
			if !valid {
				writeUnauthorized(w, r, "invalid or expired access token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, &User{Username: username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get(AuthorizationHeader); authHeader != "" {
		if rest, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return rest
		}
	}
	if tok := r.FormValue("accessToken"); tok != "" {
		return tok
	}
	return ""
}

// writeUnauthorized writes 401 Unauthorized response
func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	requestID := GetRequestID(r.Context())
	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"code":       "AUTHENTICATION_ERROR",
			"message":    message,
			"request_id": requestID,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(errorResponse)
}

// GetUser extracts the authenticated user from context.
func GetUser(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(UserContextKey).(*User)
	return user, ok
}
