package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/mentorship-api/internal/models"
)

const userColumns = `id, email, password_hash, name, bio, skills, interests, experience, experience_years, role, average_rating, total_reviews, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// UserRepository provides database access for accounts, login sessions and
// the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by (lower-cased) email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. A taken email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	const query = `INSERT INTO users (id, email, password_hash, name, bio, skills, interests, experience, experience_years, role, total_reviews, created_at, updated_at)
VALUES (:id, :email, :password_hash, :name, :bio, :skills, :interests, :experience, :experience_years, :role, 0, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile writes the owner editable fields. Rating aggregates are not
// touched.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET name = :name, bio = :bio, skills = :skills, interests = :interests, experience = :experience,
experience_years = :experience_years, role = :role, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns one page of users matching filter plus the total match count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		args = append(args, pq.Array(roles))
		conditions = append(conditions, fmt.Sprintf("role = ANY($%d)", len(args)))
	}
	if filter.ExcludeID != "" {
		args = append(args, filter.ExcludeID)
		conditions = append(conditions, fmt.Sprintf("id <> $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+likeEscaper.Replace(q)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR skills ILIKE $%d OR interests ILIKE $%d)", n, n, n))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalisePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s FROM users%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d",
		userColumns, where, pageSize, (page-1)*pageSize)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// CreateAuthSession persists a login.
func (r *UserRepository) CreateAuthSession(ctx context.Context, session *models.AuthSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO auth_sessions (id, user_id, token_hash, expires_at, created_at, revoked_at, ip_address, user_agent)
VALUES (:id, :user_id, :token_hash, :expires_at, :created_at, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create auth session: %w", err)
	}
	return nil
}

// FindAuthSession looks a login up by token hash.
func (r *UserRepository) FindAuthSession(ctx context.Context, tokenHash string) (*models.AuthSession, error) {
	const query = `SELECT id, user_id, token_hash, expires_at, created_at, revoked_at, ip_address, user_agent FROM auth_sessions WHERE token_hash = $1 LIMIT 1`
	var session models.AuthSession
	if err := r.db.GetContext(ctx, &session, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find auth session: %w", err)
	}
	return &session, nil
}

// FindAuthSessionByID looks a login up by id.
func (r *UserRepository) FindAuthSessionByID(ctx context.Context, id string) (*models.AuthSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT id, user_id, token_hash, expires_at, created_at, revoked_at, ip_address, user_agent FROM auth_sessions WHERE id = $1 LIMIT 1`
	var session models.AuthSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find auth session: %w", err)
	}
	return &session, nil
}

// RevokeAuthSession marks a login as ended. Revoking twice is a no-op.
func (r *UserRepository) RevokeAuthSession(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE auth_sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke auth session: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// Ping checks database reachability for readiness probes.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func normalisePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
