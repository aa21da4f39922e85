package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/middleware"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/pkg/response"
	"github.com/noah-isme/mentorship-api/pkg/sessioncookie"
)

type authService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Logout(ctx context.Context, sessionToken string, meta models.RequestMeta) error
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
	cookies *sessioncookie.Store
	logger  *zap.Logger
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cookies *sessioncookie.Store, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{service: svc, cookies: cookies, logger: logger}
}

// Signup godoc
// @Summary Register an account
// @Description Creates a user and signs them in. The session cookie is set on success.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Signup payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid signup payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setCookie(c, res.SessionToken)
	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email and password. Browsers get a session cookie, API clients use the access token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setCookie(c, res.SessionToken)
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout
// @Description Revokes the cookie session and clears the cookie. Safe to call when signed out.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := h.cookies.Token(c.Request)
	if err := h.service.Logout(c.Request.Context(), token, middleware.RequestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	if h.cookies != nil {
		if err := h.cookies.Clear(c.Writer, c.Request); err != nil {
			h.logger.Warn("failed to clear session cookie", zap.Error(err))
		}
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "logged out"}, nil)
}

// Me godoc
// @Summary Current user
// @Description Returns the signed in user, or null for anonymous callers.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"user": middleware.CurrentUser(c)}, nil)
}

func (h *AuthHandler) setCookie(c *gin.Context, token string) {
	if h.cookies == nil || token == "" {
		return
	}
	if err := h.cookies.Save(c.Writer, c.Request, token); err != nil {
		h.logger.Warn("failed to write session cookie", zap.Error(err))
	}
}
