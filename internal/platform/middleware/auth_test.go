package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	usermodels "cardfeed/internal/users/models"
	dErrors "cardfeed/pkg/domainerrors"
)

type stubValidator struct {
	login string
	err   error
}

func (v stubValidator) ValidateToken(string) (string, error) {
	return v.login, v.err
}

type stubDirectory struct {
	users map[string]usermodels.UserContext
}

func (d stubDirectory) UserContext(_ context.Context, login string) (usermodels.UserContext, error) {
	user, ok := d.users[login]
	if !ok {
		return usermodels.UserContext{}, dErrors.Newf(dErrors.CodeNotFound, "user %q not found", login)
	}
	return user, nil
}

type AuthMiddlewareSuite struct {
	suite.Suite
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) serve(validator TokenValidator, directory UserDirectory, header string) (*httptest.ResponseRecorder, *usermodels.UserContext) {
	var seen *usermodels.UserContext
	handler := RequireAuth(validator, directory, slog.New(slog.DiscardHandler))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, ok := GetUserContext(r.Context()); ok {
				seen = &user
			}
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, seen
}

func (s *AuthMiddlewareSuite) TestRequireAuth() {
	directory := stubDirectory{users: map[string]usermodels.UserContext{
		"operator1": {User: usermodels.User{Login: "operator1", Groups: []string{"dispatchers"}}},
	}}

	s.Run("valid token attaches the user context", func() {
		rr, seen := s.serve(stubValidator{login: "operator1"}, directory, "Bearer token")
		s.Equal(http.StatusOK, rr.Code)
		s.Require().NotNil(seen)
		s.Equal([]string{"dispatchers"}, seen.User.Groups)
	})

	s.Run("missing header is rejected", func() {
		rr, seen := s.serve(stubValidator{login: "operator1"}, directory, "")
		s.Equal(http.StatusUnauthorized, rr.Code)
		s.Nil(seen)
	})

	s.Run("invalid token is rejected", func() {
		rr, _ := s.serve(stubValidator{err: errors.New("expired")}, directory, "Bearer token")
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("unknown user is rejected", func() {
		rr, _ := s.serve(stubValidator{login: "ghost"}, directory, "Bearer token")
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("non-bearer scheme is rejected", func() {
		rr, _ := s.serve(stubValidator{login: "operator1"}, directory, "Basic dXNlcg==")
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}
