package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/models"
)

// RequestMeta captures the client details stored with audit entries.
func RequestMeta(c *gin.Context) models.RequestMeta {
	if c == nil || c.Request == nil {
		return models.RequestMeta{}
	}
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
