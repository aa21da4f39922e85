package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mentorship-api/internal/models"
)

const sessionSelect = `SELECT s.id, s.requester_id, s.mentor_id, rq.name AS requester_name, mt.name AS mentor_name,
s.topic, s.description, s.scheduled_time, s.meeting_link, s.status,
EXISTS (SELECT 1 FROM feedback f WHERE f.session_id = s.id) AS has_feedback,
s.created_at, s.updated_at
FROM mentorship_sessions s
JOIN users rq ON rq.id = s.requester_id
JOIN users mt ON mt.id = s.mentor_id`

// SessionUpdate is the write a transition decides on. A nil update means the
// session is already in the requested state and nothing is written.
type SessionUpdate struct {
	Status      models.SessionStatus
	MeetingLink *string
}

// SessionRepository persists mentorship sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a pending session. A second open request for the same
// mentor and topic yields ErrDuplicate.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt
	session.Status = models.SessionPending
	session.MeetingLink = nil

	const query = `INSERT INTO mentorship_sessions (id, requester_id, mentor_id, topic, description, scheduled_time, meeting_link, status, created_at, updated_at)
VALUES (:id, :requester_id, :mentor_id, :topic, :description, :scheduled_time, :meeting_link, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// HasOpenRequest reports whether requester already has a pending or accepted
// session with mentor on topic.
func (r *SessionRepository) HasOpenRequest(ctx context.Context, requesterID, mentorID, topic string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM mentorship_sessions WHERE requester_id = $1 AND mentor_id = $2 AND topic = $3 AND status IN ('pending', 'accepted'))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, requesterID, mentorID, topic); err != nil {
		return false, fmt.Errorf("check open request: %w", err)
	}
	return exists, nil
}

// GetByID returns a session with participant names.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	var session models.Session
	if err := r.db.GetContext(ctx, &session, sessionSelect+` WHERE s.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// ListForUser returns every session userID takes part in, newest first.
func (r *SessionRepository) ListForUser(ctx context.Context, userID string) ([]models.Session, error) {
	query := sessionSelect + ` WHERE s.requester_id = $1 OR s.mentor_id = $1 ORDER BY s.created_at DESC, s.id DESC`
	sessions := []models.Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Transition locks the session row, hands the current state to decide and
// applies the returned update in the same transaction. Concurrent callers
// queue on the row lock, so each decide sees the status the previous one
// committed. Errors from decide are returned unchanged.
func (r *SessionRepository) Transition(ctx context.Context, id string, decide func(current *models.Session) (*SessionUpdate, error)) (session *models.Session, err error) {
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, sql.ErrNoRows
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Session
	if err = tx.GetContext(ctx, &current, sessionSelect+` WHERE s.id = $1 FOR UPDATE OF s`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock session: %w", err)
	}

	update, err := decide(&current)
	if err != nil {
		return nil, err
	}
	if update == nil {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit session transition: %w", err)
		}
		return &current, nil
	}

	now := time.Now().UTC()
	const updateQuery = `UPDATE mentorship_sessions SET status = $2, meeting_link = COALESCE($3, meeting_link), updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, update.Status, update.MeetingLink, now); err != nil {
		return nil, fmt.Errorf("update session status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session transition: %w", err)
	}

	current.Status = update.Status
	if update.MeetingLink != nil {
		current.MeetingLink = update.MeetingLink
	}
	current.UpdatedAt = now
	return &current, nil
}
