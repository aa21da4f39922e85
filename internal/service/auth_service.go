package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/repository"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	CreateAuthSession(ctx context.Context, session *models.AuthSession) error
	FindAuthSession(ctx context.Context, tokenHash string) (*models.AuthSession, error)
	FindAuthSessionByID(ctx context.Context, id string) (*models.AuthSession, error)
	RevokeAuthSession(ctx context.Context, id string, revokedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	SessionTTL        time.Duration
	Issuer            string
	PasswordMinLength int
}

// AuthService registers accounts and resolves the caller behind a session
// cookie or a bearer token.
type AuthService struct {
	repo      authUserRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.PasswordMinLength <= 0 {
		config.PasswordMinLength = 8
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 7 * 24 * time.Hour
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = time.Hour
	}
	return &AuthService{repo: repo, cache: cache, validator: validate, logger: logger, metrics: metrics, config: config, now: time.Now}
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if err := checkPassword(req.Password, s.config.PasswordMinLength); err != nil {
		return nil, err
	}

	role := models.RoleMentee
	if strings.TrimSpace(req.Role) != "" {
		parsed, ok := models.ParseUserRole(req.Role)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "role must be one of mentor, mentee, both")
		}
		role = parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Bio:          strings.TrimSpace(req.Bio),
		Skills:       strings.TrimSpace(req.Skills),
		Interests:    strings.TrimSpace(req.Interests),
		Role:         role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.cache.Invalidate(ctx, userListCachePrefix+":*")

	meta := models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent}
	recordAudit(ctx, s.repo, s.logger, user.ID, models.AuditActionRegister, "user", user.ID, map[string]string{"role": string(role)}, meta)
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(role)))

	return s.issue(ctx, user, meta)
}

// Login verifies credentials and starts a new login session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordLogin(false)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.metrics.RecordLogin(false)
		s.logger.Warn("failed login attempt", zap.String("user_id", user.ID))
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	s.metrics.RecordLogin(true)

	meta := models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent}
	resp, err := s.issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repo, s.logger, user.ID, models.AuditActionLogin, "auth", user.ID, map[string]string{"status": "success"}, meta)
	return resp, nil
}

// Logout revokes the login behind sessionToken. Unknown or empty tokens are
// ignored so logging out twice is harmless.
func (s *AuthService) Logout(ctx context.Context, sessionToken string, meta models.RequestMeta) error {
	if sessionToken == "" {
		return nil
	}
	session, err := s.repo.FindAuthSession(ctx, hashToken(sessionToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load login session")
	}
	if session.RevokedAt != nil {
		return nil
	}
	if err := s.repo.RevokeAuthSession(ctx, session.ID, s.now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke login session")
	}
	recordAudit(ctx, s.repo, s.logger, session.UserID, models.AuditActionLogout, "auth", session.UserID, map[string]string{"status": "logout"}, meta)
	return nil
}

// Authenticate resolves the user behind an opaque session token.
func (s *AuthService) Authenticate(ctx context.Context, sessionToken string) (*models.User, error) {
	if sessionToken == "" {
		return nil, appErrors.ErrUnauthorized
	}
	session, err := s.repo.FindAuthSession(ctx, hashToken(sessionToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load login session")
	}
	if !session.Active(s.now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}
	return s.loadUser(ctx, session.UserID)
}

// AuthenticateBearer resolves the user behind a signed access token. The token
// is only honoured while the login it was issued with is active, and the user
// is reloaded so role changes apply at once.
func (s *AuthService) AuthenticateBearer(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	session, err := s.repo.FindAuthSessionByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load login session")
	}
	if !session.Active(s.now().UTC()) || session.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}
	return s.loadUser(ctx, claims.UserID)
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) loadUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User, meta models.RequestMeta) (*models.LoginResponse, error) {
	raw, err := generateSessionToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session token")
	}

	issuedAt := s.now().UTC()
	session := &models.AuthSession{
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: issuedAt.Add(s.config.SessionTTL),
		CreatedAt: issuedAt,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.repo.CreateAuthSession(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist login session")
	}

	access, err := s.generateAccessToken(user, session.ID, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.LoginResponse{
		User:         user,
		AccessToken:  access,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     issuedAt,
		SessionToken: raw,
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User, sessionID string, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// checkPassword requires min characters with upper case, lower case and a digit.
func checkPassword(password string, min int) error {
	if len([]rune(password)) < min {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("password must be at least %d characters", min))
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return appErrors.Clone(appErrors.ErrValidation, "password must contain an uppercase letter, a lowercase letter and a digit")
	}
	return nil
}
