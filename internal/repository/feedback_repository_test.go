package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentorship-api/internal/models"
)

func expectFeedbackLocks(mock sqlmock.Sqlmock, status models.SessionStatus) {
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM mentorship_sessions s WHERE s.id = $1 FOR UPDATE")).
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "requester_id", "mentor_id", "topic", "status", "has_feedback", "created_at", "updated_at"}).
			AddRow(sessionID, menteeID, mentorID, "Go", string(status), false, now, now))
}

func expectMentorLock(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(mentorID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(mentorID))
}

func TestCreateFeedbackRecomputesRating(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	expectFeedbackLocks(mock, models.SessionCompleted)
	expectMentorLock(mock)
	mock.ExpectExec("INSERT INTO feedback").
		WithArgs(sqlmock.AnyArg(), sessionID, menteeID, mentorID, 5, "Great!", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("RETURNING u.id, u.average_rating, u.total_reviews")).
		WithArgs(mentorID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "average_rating", "total_reviews"}).AddRow(mentorID, 4.5, 2))
	mock.ExpectCommit()

	fb := &models.Feedback{SessionID: sessionID, AuthorID: menteeID, Rating: 5, Comment: "Great!"}
	summary, err := repo.Create(context.Background(), fb, func(session *models.Session) error {
		assert.Equal(t, models.SessionCompleted, session.Status)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mentorID, fb.TargetUserID)
	assert.Equal(t, "Go", fb.SessionTopic)
	assert.Equal(t, mentorID, summary.UserID)
	require.NotNil(t, summary.AverageRating)
	assert.Equal(t, 4.5, *summary.AverageRating)
	assert.Equal(t, 2, summary.TotalReviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFeedbackRejectedByAuthorize(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	expectFeedbackLocks(mock, models.SessionAccepted)
	mock.ExpectRollback()

	notDone := errors.New("not completed")
	_, err := repo.Create(context.Background(), &models.Feedback{SessionID: sessionID, AuthorID: menteeID, Rating: 4}, func(*models.Session) error {
		return notDone
	})
	assert.ErrorIs(t, err, notDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFeedbackDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	expectFeedbackLocks(mock, models.SessionCompleted)
	expectMentorLock(mock)
	mock.ExpectExec("INSERT INTO feedback").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &models.Feedback{SessionID: sessionID, AuthorID: menteeID, Rating: 4}, func(*models.Session) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingSummaryWithoutReviews(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, average_rating, total_reviews FROM users WHERE id = $1")).
		WithArgs(mentorID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "average_rating", "total_reviews"}).AddRow(mentorID, nil, 0))

	summary, err := repo.RatingSummary(context.Background(), mentorID)
	require.NoError(t, err)
	assert.Nil(t, summary.AverageRating)
	assert.Zero(t, summary.TotalReviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}
