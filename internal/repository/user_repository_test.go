package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentorship-api/internal/models"
)

const (
	menteeID  = "6f1c2b1e-0000-4000-8000-00000000000a"
	mentorID  = "6f1c2b1e-0000-4000-8000-00000000000b"
	sessionID = "6f1c2b1e-0000-4000-8000-0000000000c1"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "bio", "skills", "interests", "experience", "experience_years", "role", "average_rating", "total_reviews", "created_at", "updated_at"})
}

func TestFindByEmailLowercases(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows().AddRow(mentorID, "bob@example.com", "hash", "Bob", "", "go,sql", "", "senior", 7, "mentor", 4.5, 2, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("bob@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Bob@Example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMentor, user.Role)
	require.NotNil(t, user.AverageRating)
	assert.Equal(t, 4.5, *user.AverageRating)
	require.NotNil(t, user.ExperienceYears)
	assert.Equal(t, 7, *user.ExperienceYears)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDRejectsMalformedID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	_, err := repo.FindByID(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).WithArgs(mentorID).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), mentorID)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{Email: "a@example.com", Name: "A", Role: models.RoleMentee})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{Email: "a@example.com", Name: "A", Role: models.RoleMentee}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfileMissingUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users SET name").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProfile(context.Background(), &models.User{ID: menteeID, Name: "A", Role: models.RoleMentee})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	where := " WHERE role = ANY($1) AND id <> $2 AND (name ILIKE $3 OR skills ILIKE $3 OR interests ILIKE $3)"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users" + where + " ORDER BY created_at DESC, id DESC LIMIT 10 OFFSET 10")).
		WithArgs(sqlmock.AnyArg(), menteeID, `%go\_lang%`).
		WillReturnRows(userRows().AddRow(mentorID, "bob@example.com", "hash", "Bob", "", "go_lang", "", "", nil, "mentor", nil, 0, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users" + where)).
		WithArgs(sqlmock.AnyArg(), menteeID, `%go\_lang%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	users, total, err := repo.List(context.Background(), models.UserFilter{
		Query:     " go_lang ",
		Roles:     []models.UserRole{models.RoleMentor, models.RoleBoth},
		ExcludeID: menteeID,
		Page:      2,
		PageSize:  10,
	})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Nil(t, users[0].AverageRating)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersWithoutFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(userRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	users, total, err := repo.List(context.Background(), models.UserFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthSessionLifecycle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO auth_sessions").WillReturnResult(sqlmock.NewResult(0, 1))
	session := &models.AuthSession{UserID: menteeID, TokenHash: "abc", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.CreateAuthSession(context.Background(), session))
	assert.NotEmpty(t, session.ID)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_sessions WHERE token_hash = $1")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at", "revoked_at", "ip_address", "user_agent"}).
			AddRow(session.ID, menteeID, "abc", now.Add(time.Hour), now, nil, "127.0.0.1", "test"))
	found, err := repo.FindAuthSession(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, found.Active(now))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE auth_sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL")).
		WithArgs(session.ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RevokeAuthSession(context.Background(), session.ID, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAuthSessionByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	id := "7d3a1c2b-1111-4000-8000-000000000000"
	now := time.Now()
	revoked := now.Add(-time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_sessions WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at", "revoked_at", "ip_address", "user_agent"}).
			AddRow(id, menteeID, "abc", now.Add(time.Hour), now, revoked, "", ""))
	found, err := repo.FindAuthSessionByID(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, found.Active(now), "revoked logins are inactive")

	_, err = repo.FindAuthSessionByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
