package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/middleware"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/pkg/response"
)

type userDirectory interface {
	List(ctx context.Context, actor *models.User, query models.UserListQuery) ([]models.User, *models.Pagination, bool, error)
}

type feedbackReader interface {
	ListForUser(ctx context.Context, userID string) ([]models.Feedback, error)
	RatingSummary(ctx context.Context, userID string) (*models.RatingSummary, error)
}

// UserHandler serves the mentor directory and public reviews.
type UserHandler struct {
	users    userDirectory
	feedback feedbackReader
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users userDirectory, feedback feedbackReader) *UserHandler {
	return &UserHandler{users: users, feedback: feedback}
}

// List godoc
// @Summary Browse users
// @Description Mentors and both-role users by default. Emails are hidden and the caller is excluded.
// @Tags Users
// @Produce json
// @Param q query string false "Search name, skills and interests"
// @Param role query string false "mentor, mentee or both"
// @Param show_all query bool false "Include mentees when no role is given"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	var query models.UserListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}

	users, pagination, hit, err := h.users.List(c.Request.Context(), user, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, users, pagination, middleware.ExtractMeta(c))
}

// Feedback godoc
// @Summary Reviews received by a user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/feedback [get]
func (h *UserHandler) Feedback(c *gin.Context) {
	items, err := h.feedback.ListForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Rating godoc
// @Summary Rating summary for a user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/rating [get]
func (h *UserHandler) Rating(c *gin.Context) {
	summary, err := h.feedback.RatingSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
