package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates an account.
type RegisterRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=120"`
	Password  string `json:"password" validate:"required"`
	Role      string `json:"role"`
	Bio       string `json:"bio" validate:"max=2000"`
	Skills    string `json:"skills" validate:"max=500"`
	Interests string `json:"interests" validate:"max=500"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse is returned by signup and login. SessionToken goes into the
// cookie and is never serialised.
type LoginResponse struct {
	User         *User     `json:"user"`
	AccessToken  string    `json:"access_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
	SessionToken string    `json:"-"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

// AuthSession is a server side login record. Only the SHA-256 of the opaque
// token is stored.
type AuthSession struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	IPAddress string     `db:"ip_address"`
	UserAgent string     `db:"user_agent"`
}

// Active reports whether the login is still usable at now.
func (s *AuthSession) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
