package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/middleware"
	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/service"
	"github.com/noah-isme/mentorship-api/pkg/response"
)

type sessionService interface {
	Create(ctx context.Context, requester *models.User, req models.CreateSessionRequest, meta models.RequestMeta) (*models.Session, error)
	Transition(ctx context.Context, actor *models.User, sessionID string, req models.UpdateSessionStatusRequest, meta models.RequestMeta) (*models.Session, error)
	List(ctx context.Context, actor *models.User) ([]models.SessionView, error)
	Get(ctx context.Context, actor *models.User, sessionID string) (*models.SessionView, error)
}

type feedbackWriter interface {
	Create(ctx context.Context, author *models.User, sessionID string, req models.CreateFeedbackRequest, meta models.RequestMeta) (*models.FeedbackResult, error)
}

type sessionExporter interface {
	Sessions(ctx context.Context, actor *models.User, format string, meta models.RequestMeta) (*service.ExportFile, error)
}

// SessionHandler exposes the mentorship session lifecycle.
type SessionHandler struct {
	sessions sessionService
	feedback feedbackWriter
	exports  sessionExporter
}

// NewSessionHandler constructs the handler. exports may be nil.
func NewSessionHandler(sessions sessionService, feedback feedbackWriter, exports sessionExporter) *SessionHandler {
	return &SessionHandler{sessions: sessions, feedback: feedback, exports: exports}
}

// List godoc
// @Summary List own sessions
// @Description Sessions where the caller is requester or mentor, newest first, with the actions the caller may take.
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	sessions, err := h.sessions.List(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Create godoc
// @Summary Request a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body models.CreateSessionRequest true "Session request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid session payload"))
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), user, req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get godoc
// @Summary Get a session
// @Description Only participants can see a session.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	session, err := h.sessions.Get(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// UpdateStatus godoc
// @Summary Move a session along its lifecycle
// @Description The mentor accepts or rejects a pending session, the requester completes an accepted one.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body models.UpdateSessionStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/status [put]
func (h *SessionHandler) UpdateStatus(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	var req models.UpdateSessionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid status payload"))
		return
	}
	session, err := h.sessions.Transition(c.Request.Context(), user, c.Param("id"), req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// CreateFeedback godoc
// @Summary Review a completed session
// @Description One review per session, written by the requester. Returns the mentor's new rating.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body models.CreateFeedbackRequest true "Rating and comment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/feedback [post]
func (h *SessionHandler) CreateFeedback(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	var req models.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid feedback payload"))
		return
	}
	result, err := h.feedback.Create(c.Request.Context(), user, c.Param("id"), req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Export godoc
// @Summary Download session history
// @Tags Sessions
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /sessions/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if h.exports == nil {
		c.Status(http.StatusNotFound)
		return
	}
	file, err := h.exports.Sessions(c.Request.Context(), user, c.Query("format"), middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
