package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/middleware"
	"github.com/noah-isme/mentorship-api/internal/models"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
	"github.com/noah-isme/mentorship-api/pkg/response"
)

// currentUser writes a 401 and returns nil when no user is attached.
func currentUser(c *gin.Context) *models.User {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return user
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
