package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/pkg/config"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
	"github.com/noah-isme/mentorship-api/pkg/logger"
	"github.com/noah-isme/mentorship-api/pkg/sessioncookie"
)

type fakeAuthenticator struct {
	sessions map[string]*models.User
	bearers  map[string]*models.User
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*models.User, error) {
	if user, ok := f.sessions[token]; ok {
		return user, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
}

func (f *fakeAuthenticator) AuthenticateBearer(_ context.Context, token string) (*models.User, error) {
	if user, ok := f.bearers[token]; ok {
		return user, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newCookieStore() *sessioncookie.Store {
	return sessioncookie.New(config.SessionConfig{Secret: "test-secret-test-secret-test-sec", TTL: time.Hour})
}

func withCookie(t *testing.T, store *sessioncookie.Store, req *http.Request, token string) {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, httptest.NewRequest(http.MethodGet, "/", nil), token))
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
}

func authRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", mw, func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user.ID, "actor": c.GetString(logger.ActorKey)})
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	alice := &models.User{ID: "u-alice", Role: models.RoleMentee}
	bob := &models.User{ID: "u-bob", Role: models.RoleMentor}
	auth := &fakeAuthenticator{
		sessions: map[string]*models.User{"cookie-token": alice},
		bearers:  map[string]*models.User{"jwt-token": bob},
	}
	store := newCookieStore()
	r := authRouter(RequireAuth(auth, store))

	cases := []struct {
		name   string
		cookie string
		header string
		status int
		user   string
	}{
		{name: "anonymous", status: http.StatusUnauthorized},
		{name: "cookie", cookie: "cookie-token", status: http.StatusOK, user: "u-alice"},
		{name: "bearer", header: "Bearer jwt-token", status: http.StatusOK, user: "u-bob"},
		{name: "cookie wins", cookie: "cookie-token", header: "Bearer jwt-token", status: http.StatusOK, user: "u-alice"},
		{name: "stale cookie falls back to bearer", cookie: "revoked", header: "Bearer jwt-token", status: http.StatusOK, user: "u-bob"},
		{name: "stale cookie", cookie: "revoked", status: http.StatusUnauthorized},
		{name: "bad bearer", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic abc", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.cookie != "" {
				withCookie(t, store, req, tc.cookie)
			}
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.user != "" {
				assert.JSONEq(t, `{"user":"`+tc.user+`","actor":"`+tc.user+`"}`, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuthNeverBlocks(t *testing.T) {
	store := newCookieStore()
	r := authRouter(OptionalAuth(&fakeAuthenticator{}, store))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	withCookie(t, store, req, "unknown")
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
}
