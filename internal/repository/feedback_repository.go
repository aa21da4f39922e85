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

// FeedbackRepository stores session reviews and keeps the reviewed mentor's
// rating aggregate in step with them.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create records feedback for sessionID in one transaction:
//
//  1. lock the session row and pass it to authorize
//  2. lock the mentor's user row so concurrent reviews of the same mentor
//     recompute one after another
//  3. insert the review
//  4. recompute average_rating and total_reviews from the feedback table
//
// fb.TargetUserID is set from the session. A second review of the same
// session yields ErrDuplicate.
func (r *FeedbackRepository) Create(ctx context.Context, fb *models.Feedback, authorize func(session *models.Session) error) (summary *models.RatingSummary, err error) {
	if _, parseErr := uuid.Parse(fb.SessionID); parseErr != nil {
		return nil, sql.ErrNoRows
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin feedback transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const lockSession = `SELECT s.id, s.requester_id, s.mentor_id, s.topic, s.status,
EXISTS (SELECT 1 FROM feedback f WHERE f.session_id = s.id) AS has_feedback,
s.created_at, s.updated_at
FROM mentorship_sessions s WHERE s.id = $1 FOR UPDATE`
	var session models.Session
	if err = tx.GetContext(ctx, &session, lockSession, fb.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock session for feedback: %w", err)
	}

	if err = authorize(&session); err != nil {
		return nil, err
	}

	var mentorID string
	if err = tx.GetContext(ctx, &mentorID, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, session.MentorID); err != nil {
		return nil, fmt.Errorf("lock rated user: %w", err)
	}

	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	fb.TargetUserID = session.MentorID
	fb.SessionTopic = session.Topic

	const insertQuery = `INSERT INTO feedback (id, session_id, author_id, target_user_id, rating, comment, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, insertQuery, fb.ID, fb.SessionID, fb.AuthorID, fb.TargetUserID, fb.Rating, fb.Comment, fb.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return nil, err
		}
		return nil, fmt.Errorf("insert feedback: %w", err)
	}

	const recompute = `UPDATE users u
SET average_rating = agg.average, total_reviews = agg.total
FROM (SELECT ROUND(AVG(rating)::numeric, 1) AS average, COUNT(*) AS total FROM feedback WHERE target_user_id = $1) agg
WHERE u.id = $1
RETURNING u.id, u.average_rating, u.total_reviews`
	var result models.RatingSummary
	if err = tx.GetContext(ctx, &result, recompute, fb.TargetUserID); err != nil {
		return nil, fmt.Errorf("recompute rating: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit feedback: %w", err)
	}
	return &result, nil
}

// ListByTarget returns reviews received by userID, newest first.
func (r *FeedbackRepository) ListByTarget(ctx context.Context, userID string) ([]models.Feedback, error) {
	const query = `SELECT f.id, f.session_id, f.author_id, u.name AS author_name, f.target_user_id, f.rating, f.comment,
s.topic AS session_topic, f.created_at
FROM feedback f
JOIN users u ON u.id = f.author_id
JOIN mentorship_sessions s ON s.id = f.session_id
WHERE f.target_user_id = $1
ORDER BY f.created_at DESC, f.id DESC`
	items := []models.Feedback{}
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return items, nil
}

// RatingSummary returns the stored aggregate for userID.
func (r *FeedbackRepository) RatingSummary(ctx context.Context, userID string) (*models.RatingSummary, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT id, average_rating, total_reviews FROM users WHERE id = $1`
	var summary models.RatingSummary
	if err := r.db.GetContext(ctx, &summary, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("rating summary: %w", err)
	}
	return &summary, nil
}
