package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/policy"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	userListCachePrefix = "users:list"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cachedUserPage struct {
	Users []models.User `json:"users"`
	Total int           `json:"total"`
}

// UserService covers profiles and the mentor directory.
type UserService struct {
	repo      userRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService. cache may be nil.
func NewUserService(repo userRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateProfile applies the owner's edits. Blank names are ignored, text
// fields are trimmed and experience_years only sticks for roles that can
// receive requests.
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, req models.UpdateProfileRequest, meta models.RequestMeta) (*models.User, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.Get(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	before := user.Role

	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			if len([]rune(name)) > 100 {
				return nil, appErrors.Clone(appErrors.ErrValidation, "name must be at most 100 characters")
			}
			user.Name = name
		}
	}
	if req.Bio != nil {
		user.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.Skills != nil {
		user.Skills = strings.TrimSpace(*req.Skills)
	}
	if req.Interests != nil {
		user.Interests = strings.TrimSpace(*req.Interests)
	}
	if req.Experience != nil {
		user.Experience = strings.TrimSpace(*req.Experience)
	}
	if req.Role != nil {
		role, ok := models.ParseUserRole(*req.Role)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "role must be one of mentor, mentee, both")
		}
		user.Role = role
	}
	if req.ExperienceYears.Set && policy.For(user.Role).SetExperience {
		if v := req.ExperienceYears.Value; v != nil && *v < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "experience_years must not be negative")
		}
		user.ExperienceYears = req.ExperienceYears.Value
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	s.InvalidateListings(ctx)
	recordAudit(ctx, s.repo, s.logger, user.ID, models.AuditActionProfileUpdate, "user", user.ID, map[string]string{"role_before": string(before), "role": string(user.Role)}, meta)
	s.logger.Info("profile updated", zap.String("user_id", user.ID))
	return user, nil
}

// List browses the directory on behalf of actor. The actor is never listed
// and emails are stripped. The second return reports a cache hit.
func (s *UserService) List(ctx context.Context, actor *models.User, query models.UserListQuery) ([]models.User, *models.Pagination, bool, error) {
	if actor == nil {
		return nil, nil, false, appErrors.ErrUnauthorized
	}
	if !policy.CanBrowse(actor) {
		return nil, nil, false, appErrors.Clone(appErrors.ErrForbidden, "mentors cannot browse other users")
	}

	filter := models.UserFilter{
		Query:     strings.TrimSpace(query.Query),
		ExcludeID: actor.ID,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > maxPageSize {
		filter.PageSize = defaultPageSize
	}
	if role, ok := models.ParseUserRole(query.Role); ok {
		filter.Roles = []models.UserRole{role}
	} else if !query.ShowAll {
		filter.Roles = []models.UserRole{models.RoleMentor, models.RoleBoth}
	}

	key := userListKey(filter)
	var page cachedUserPage
	hit := s.cache.Get(ctx, key, &page)
	if !hit {
		users, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
		}
		page = cachedUserPage{Users: make([]models.User, 0, len(users)), Total: total}
		for _, u := range users {
			page.Users = append(page.Users, u.Public())
		}
		s.cache.Set(ctx, key, page, s.cacheTTL)
	}

	return page.Users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: page.Total}, hit, nil
}

// InvalidateListings drops cached directory pages.
func (s *UserService) InvalidateListings(ctx context.Context) {
	s.cache.Invalidate(ctx, userListCachePrefix+":*")
}

func userListKey(filter models.UserFilter) string {
	roles := make([]string, len(filter.Roles))
	for i, r := range filter.Roles {
		roles[i] = string(r)
	}
	return CacheKey(userListCachePrefix, filter.ExcludeID, strings.Join(roles, ","),
		strconv.Itoa(filter.Page), strconv.Itoa(filter.PageSize), strings.ToLower(filter.Query))
}
