package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	usermodels "cardfeed/internal/users/models"
)

// TokenValidator validates a bearer token and yields the login it carries.
type TokenValidator interface {
	ValidateToken(tokenString string) (login string, err error)
}

// UserDirectory resolves the full user context for a login: flattened
// memberships plus computed perimeters.
type UserDirectory interface {
	UserContext(ctx context.Context, login string) (usermodels.UserContext, error)
}

type contextKeyUserContext struct{}

// GetUserContext retrieves the authenticated user context from the context.
func GetUserContext(ctx context.Context) (usermodels.UserContext, bool) {
	user, ok := ctx.Value(contextKeyUserContext{}).(usermodels.UserContext)
	return user, ok
}

// WithUserContext stores a user context; test helpers use it to simulate an
// authenticated request.
func WithUserContext(ctx context.Context, user usermodels.UserContext) context.Context {
	return context.WithValue(ctx, contextKeyUserContext{}, user)
}

// RequireAuth validates the bearer token and attaches the resolved user
// context to the request.
func RequireAuth(validator TokenValidator, directory UserDirectory, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx))
				unauthorized(w, "missing bearer token")
				return
			}

			login, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx))
				unauthorized(w, "invalid or expired token")
				return
			}

			user, err := directory.UserContext(ctx, login)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - unknown user",
					"login", login,
					"error", err,
					"request_id", GetRequestID(ctx))
				unauthorized(w, "unknown user")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserContext(ctx, user)))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
