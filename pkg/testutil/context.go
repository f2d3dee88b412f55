package testutil

import (
	"net/http"

	"cardfeed/internal/platform/middleware"
	usermodels "cardfeed/internal/users/models"
)

// WithUser attaches a user context to the request.
// This simulates what the auth middleware would do for authenticated requests.
func WithUser(req *http.Request, user usermodels.UserContext) *http.Request {
	return req.WithContext(middleware.WithUserContext(req.Context(), user))
}
