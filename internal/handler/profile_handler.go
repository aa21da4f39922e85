package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/middleware"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/policy"
	"github.com/noah-isme/mentorship-api/pkg/response"
)

type profileService interface {
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, actor *models.User, req models.UpdateProfileRequest, meta models.RequestMeta) (*models.User, error)
}

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	service profileService
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(svc profileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Get godoc
// @Summary Get own profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	profile, err := h.service.Get(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Update godoc
// @Summary Update own profile
// @Description Omitted fields are left unchanged. experience_years only applies to mentor and both roles.
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body models.UpdateProfileRequest true "Profile changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profile [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid profile payload"))
		return
	}
	updated, err := h.service.UpdateProfile(c.Request.Context(), user, req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Capabilities godoc
// @Summary Role capabilities
// @Description What the caller's role allows. Clients use it to show or hide actions.
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profile/capabilities [get]
func (h *ProfileHandler) Capabilities(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"role": user.Role, "capabilities": policy.For(user.Role)}, nil)
}
