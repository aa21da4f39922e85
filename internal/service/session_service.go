package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/policy"
	"github.com/noah-isme/mentorship-api/internal/repository"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

var scheduledTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	HasOpenRequest(ctx context.Context, requesterID, mentorID, topic string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListForUser(ctx context.Context, userID string) ([]models.Session, error)
	Transition(ctx context.Context, id string, decide func(current *models.Session) (*repository.SessionUpdate, error)) (*models.Session, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SessionService drives the mentorship session lifecycle.
type SessionService struct {
	sessions  sessionRepository
	users     userFinder
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// SessionServiceParams groups constructor dependencies.
type SessionServiceParams struct {
	Sessions  sessionRepository
	Users     userFinder
	Audit     auditRecorder
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(params SessionServiceParams) *SessionService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{
		sessions:  params.Sessions,
		users:     params.Users,
		audit:     params.Audit,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create opens a pending session from requester to the chosen mentor.
func (s *SessionService) Create(ctx context.Context, requester *models.User, req models.CreateSessionRequest, meta models.RequestMeta) (*models.Session, error) {
	if requester == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Topic = strings.TrimSpace(req.Topic)
	req.MentorID = strings.TrimSpace(req.MentorID)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "mentor_id and topic are required")
	}

	scheduled, err := parseScheduledTime(req.ScheduledTime)
	if err != nil {
		return nil, err
	}

	var mentor *models.User
	if req.MentorID != requester.ID {
		mentor, err = s.users.FindByID(ctx, req.MentorID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
		}
	} else {
		mentor = requester
	}
	if err := policy.AuthorizeRequest(requester, mentor); err != nil {
		s.logger.Warn("session request refused", zap.String("requester_id", requester.ID), zap.String("mentor_id", req.MentorID), zap.Error(err))
		return nil, err
	}

	open, err := s.sessions.HasOpenRequest(ctx, requester.ID, mentor.ID, req.Topic)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing requests")
	}
	if open {
		return nil, duplicateRequestError()
	}

	session := &models.Session{
		RequesterID:   requester.ID,
		MentorID:      mentor.ID,
		RequesterName: requester.Name,
		MentorName:    mentor.Name,
		Topic:         req.Topic,
		Description:   req.Description,
		ScheduledTime: scheduled,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateRequestError()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	recordAudit(ctx, s.audit, s.logger, requester.ID, models.AuditActionSessionCreate, "session", session.ID, map[string]string{"mentor_id": mentor.ID, "topic": session.Topic}, meta)
	s.logger.Info("session requested", zap.String("session_id", session.ID), zap.String("requester_id", requester.ID), zap.String("mentor_id", mentor.ID))
	return session, nil
}

// Transition moves a session to target. The current status is read and
// judged under the row lock, so of two racing accepts only the first wins.
func (s *SessionService) Transition(ctx context.Context, actor *models.User, sessionID string, req models.UpdateSessionStatusRequest, meta models.RequestMeta) (*models.Session, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	req.MeetingLink = strings.TrimSpace(req.MeetingLink)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target, err := policy.ParseTarget(req.Status)
	if err != nil {
		return nil, err
	}

	var from models.SessionStatus
	var changed bool
	session, err := s.sessions.Transition(ctx, sessionID, func(current *models.Session) (*repository.SessionUpdate, error) {
		if err := policy.AuthorizeTransition(actor, current, target); err != nil {
			return nil, err
		}
		from = current.Status
		if current.Status == target {
			return nil, nil
		}
		changed = true
		update := &repository.SessionUpdate{Status: target}
		if target == models.SessionAccepted && req.MeetingLink != "" {
			link := req.MeetingLink
			update.MeetingLink = &link
		}
		return update, nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			s.logger.Warn("session transition refused", zap.String("session_id", sessionID), zap.String("actor_id", actor.ID), zap.String("target", string(target)), zap.Error(err))
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}

	if changed {
		s.metrics.RecordTransition(from, target)
		recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionSessionTransition, "session", session.ID, map[string]string{"from": string(from), "to": string(target)}, meta)
		s.logger.Info("session status changed", zap.String("session_id", session.ID), zap.String("from", string(from)), zap.String("to", string(target)))
	}
	return session, nil
}

// List returns every session actor takes part in, newest first.
func (s *SessionService) List(ctx context.Context, actor *models.User) ([]models.SessionView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	sessions, err := s.sessions.ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	views := make([]models.SessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, view(actor, &sessions[i]))
	}
	return views, nil
}

// Get returns one session with the actions actor may take next. Outsiders
// get NotFound so session ids do not leak.
func (s *SessionService) Get(ctx context.Context, actor *models.User, sessionID string) (*models.SessionView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.Participant(actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	v := view(actor, session)
	return &v, nil
}

func view(actor *models.User, session *models.Session) models.SessionView {
	actions := policy.Actions(actor, session)
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return models.SessionView{Session: *session, AllowedActions: names}
}

func duplicateRequestError() error {
	return appErrors.Clone(appErrors.ErrConflict, "you already have an open request with this mentor for this topic")
}

// parseScheduledTime accepts RFC 3339 or a zone-less minute/second precision
// timestamp, which is taken as UTC. Blank input means unscheduled.
func parseScheduledTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range scheduledTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "scheduled_time must be an ISO 8601 timestamp")
}
