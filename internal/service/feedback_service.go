package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/policy"
	"github.com/noah-isme/mentorship-api/internal/repository"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

type feedbackRepository interface {
	Create(ctx context.Context, fb *models.Feedback, authorize func(session *models.Session) error) (*models.RatingSummary, error)
	ListByTarget(ctx context.Context, userID string) ([]models.Feedback, error)
	RatingSummary(ctx context.Context, userID string) (*models.RatingSummary, error)
}

// FeedbackService records session reviews and serves rating aggregates.
type FeedbackService struct {
	feedback  feedbackRepository
	users     userFinder
	audit     auditRecorder
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// FeedbackServiceParams groups constructor dependencies.
type FeedbackServiceParams struct {
	Feedback  feedbackRepository
	Users     userFinder
	Audit     auditRecorder
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(params FeedbackServiceParams) *FeedbackService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &FeedbackService{
		feedback:  params.Feedback,
		users:     params.Users,
		audit:     params.Audit,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create stores author's review of a completed session and returns the
// mentor's refreshed rating.
func (s *FeedbackService) Create(ctx context.Context, author *models.User, sessionID string, req models.CreateFeedbackRequest, meta models.RequestMeta) (*models.FeedbackResult, error) {
	if author == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := policy.ValidateRating(req.Rating); err != nil {
		return nil, err
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	fb := &models.Feedback{
		SessionID:  sessionID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	summary, err := s.feedback.Create(ctx, fb, func(session *models.Session) error {
		return policy.AuthorizeFeedback(author, session)
	})
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "feedback already submitted for this session")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			s.logger.Warn("feedback refused", zap.String("session_id", sessionID), zap.String("author_id", author.ID), zap.Error(err))
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save feedback")
	}

	s.metrics.RecordFeedback(fb.Rating)
	s.cache.Invalidate(ctx, userListCachePrefix+":*")
	recordAudit(ctx, s.audit, s.logger, author.ID, models.AuditActionFeedbackCreate, "feedback", fb.ID, map[string]interface{}{"session_id": sessionID, "rating": fb.Rating}, meta)
	s.logger.Info("feedback recorded", zap.String("session_id", sessionID), zap.String("target_user_id", fb.TargetUserID), zap.Int("rating", fb.Rating))

	return &models.FeedbackResult{Feedback: *fb, Rating: *summary}, nil
}

// ListForUser returns reviews userID received, newest first.
func (s *FeedbackService) ListForUser(ctx context.Context, userID string) ([]models.Feedback, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	items, err := s.feedback.ListByTarget(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return items, nil
}

// RatingSummary returns the stored aggregate for userID.
func (s *FeedbackService) RatingSummary(ctx context.Context, userID string) (*models.RatingSummary, error) {
	summary, err := s.feedback.RatingSummary(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rating")
	}
	return summary, nil
}

func (s *FeedbackService) ensureUser(ctx context.Context, userID string) error {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return nil
}
