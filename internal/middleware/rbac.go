package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/policy"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
	"github.com/noah-isme/mentorship-api/pkg/response"
)

// Capability names a role capability a route can demand.
type Capability string

// CapabilityBrowse gates the user directory.
const CapabilityBrowse Capability = "browse"

// RequireCapability lets the request through when the current user's role
// grants every listed capability. It must run after RequireAuth.
func RequireCapability(required ...Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		caps := policy.For(user.Role)
		for _, capability := range required {
			if !grants(caps, capability) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "your role does not allow this action"))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

func grants(caps policy.Capabilities, capability Capability) bool {
	switch capability {
	case CapabilityBrowse:
		return caps.Browse
	}
	return false
}
