package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/models"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
	"github.com/noah-isme/mentorship-api/pkg/logger"
	"github.com/noah-isme/mentorship-api/pkg/response"
	"github.com/noah-isme/mentorship-api/pkg/sessioncookie"
)

// ContextUserKey is the gin context key storing the authenticated user.
const ContextUserKey = "currentUser"

// Authenticator resolves credentials to a freshly loaded user.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionToken string) (*models.User, error)
	AuthenticateBearer(ctx context.Context, token string) (*models.User, error)
}

// RequireAuth rejects requests without a valid session cookie or bearer token.
func RequireAuth(auth Authenticator, cookies *sessioncookie.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c, auth, cookies)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if user == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when credentials are valid but never blocks.
func OptionalAuth(auth Authenticator, cookies *sessioncookie.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := resolveUser(c, auth, cookies); err == nil && user != nil {
			setUser(c, user)
		}
		c.Next()
	}
}

// CurrentUser returns the user attached by the auth middleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// The cookie wins over the Authorization header.
func resolveUser(c *gin.Context, auth Authenticator, cookies *sessioncookie.Store) (*models.User, error) {
	ctx := c.Request.Context()
	if token := cookies.Token(c.Request); token != "" {
		user, err := auth.Authenticate(ctx, token)
		if err == nil {
			return user, nil
		}
		if !strings.HasPrefix(c.GetHeader("Authorization"), "Bearer ") {
			return nil, err
		}
	}

	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return auth.AuthenticateBearer(ctx, strings.TrimSpace(parts[1]))
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(ContextUserKey, user)
	c.Set(logger.ActorKey, user.ID)
}
