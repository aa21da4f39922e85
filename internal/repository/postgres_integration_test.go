package repository

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/migrations"
	"github.com/noah-isme/mentorship-api/pkg/database"
)

// MENTORSHIP_TEST_PG_DSN points the integration tests at an existing database
// instead of starting a container.
const integrationDSNEnv = "MENTORSHIP_TEST_PG_DSN"

var errLostRace = errors.New("session already moved on")

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv(integrationDSNEnv)
	if dsn == "" {
		if !dockerAvailable(ctx) {
			t.Skipf("docker unavailable and %s not set", integrationDSNEnv)
		}
		container, err := postgres.Run(ctx,
			"postgres:16",
			postgres.WithDatabase("mentorship"),
			postgres.WithUsername("mentorship"),
			postgres.WithPassword("mentorship"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := database.Open(dsn, 16, 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Apply(ctx, db))
	return db
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	cmd := exec.CommandContext(ctx, "docker", "info")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run() == nil
}

func seedUser(t *testing.T, repo *UserRepository, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Name:         string(role) + " user",
		Role:         role,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestPostgresConcurrency(t *testing.T) {
	db := startPostgres(t)
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	feedback := NewFeedbackRepository(db)
	ctx := context.Background()

	t.Run("only one of two accepts wins", func(t *testing.T) {
		mentee := seedUser(t, users, models.RoleMentee)
		mentor := seedUser(t, users, models.RoleMentor)
		session := &models.Session{RequesterID: mentee.ID, MentorID: mentor.ID, Topic: "Concurrency"}
		require.NoError(t, sessions.Create(ctx, session))

		var won, lost int32
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < 2; i++ {
			target := models.SessionAccepted
			if i == 1 {
				target = models.SessionRejected
			}
			g.Go(func() error {
				_, err := sessions.Transition(gctx, session.ID, func(current *models.Session) (*SessionUpdate, error) {
					if !models.CanTransition(current.Status, target) {
						return nil, errLostRace
					}
					return &SessionUpdate{Status: target}, nil
				})
				switch {
				case err == nil:
					atomic.AddInt32(&won, 1)
				case errors.Is(err, errLostRace):
					atomic.AddInt32(&lost, 1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.EqualValues(t, 1, won)
		assert.EqualValues(t, 1, lost)

		stored, err := sessions.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, stored.Status == models.SessionAccepted || stored.Status == models.SessionRejected)
	})

	t.Run("second open request for the same topic conflicts", func(t *testing.T) {
		mentee := seedUser(t, users, models.RoleMentee)
		mentor := seedUser(t, users, models.RoleBoth)
		require.NoError(t, sessions.Create(ctx, &models.Session{RequesterID: mentee.ID, MentorID: mentor.ID, Topic: "Go"}))
		err := sessions.Create(ctx, &models.Session{RequesterID: mentee.ID, MentorID: mentor.ID, Topic: "Go"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("concurrent reviews keep the aggregate exact", func(t *testing.T) {
		mentor := seedUser(t, users, models.RoleMentor)
		ratings := []int{5, 4, 4, 3, 5, 2}

		ids := make([]string, len(ratings))
		authors := make([]string, len(ratings))
		for i := range ratings {
			mentee := seedUser(t, users, models.RoleMentee)
			session := &models.Session{RequesterID: mentee.ID, MentorID: mentor.ID, Topic: "Reviews"}
			require.NoError(t, sessions.Create(ctx, session))
			for _, status := range []models.SessionStatus{models.SessionAccepted, models.SessionCompleted} {
				status := status
				_, err := sessions.Transition(ctx, session.ID, func(*models.Session) (*SessionUpdate, error) {
					return &SessionUpdate{Status: status}, nil
				})
				require.NoError(t, err)
			}
			ids[i] = session.ID
			authors[i] = mentee.ID
		}

		g, gctx := errgroup.WithContext(ctx)
		for i, rating := range ratings {
			fb := &models.Feedback{SessionID: ids[i], AuthorID: authors[i], Rating: rating}
			g.Go(func() error {
				_, err := feedback.Create(gctx, fb, func(*models.Session) error { return nil })
				return err
			})
		}
		require.NoError(t, g.Wait())

		summary, err := feedback.RatingSummary(ctx, mentor.ID)
		require.NoError(t, err)
		assert.Equal(t, len(ratings), summary.TotalReviews)
		require.NotNil(t, summary.AverageRating)
		assert.InDelta(t, 3.8, *summary.AverageRating, 0.001)

		_, err = feedback.Create(ctx, &models.Feedback{SessionID: ids[0], AuthorID: authors[0], Rating: 1}, func(*models.Session) error { return nil })
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}
