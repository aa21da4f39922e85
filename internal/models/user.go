package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UserRole is the closed set of platform roles.
type UserRole string

const (
	RoleMentor UserRole = "mentor"
	RoleMentee UserRole = "mentee"
	RoleBoth   UserRole = "both"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleMentor, RoleMentee, RoleBoth:
		return true
	}
	return false
}

// ParseUserRole normalises raw input. An empty value yields ok=false.
func ParseUserRole(raw string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// User represents an account stored in the users table. AverageRating and
// TotalReviews are maintained by the feedback writer and are read-only here.
type User struct {
	ID              string    `db:"id" json:"id"`
	Email           string    `db:"email" json:"email,omitempty"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	Name            string    `db:"name" json:"name"`
	Bio             string    `db:"bio" json:"bio"`
	Skills          string    `db:"skills" json:"skills"`
	Interests       string    `db:"interests" json:"interests"`
	Experience      string    `db:"experience" json:"experience"`
	ExperienceYears *int      `db:"experience_years" json:"experience_years"`
	Role            UserRole  `db:"role" json:"role"`
	AverageRating   *float64  `db:"average_rating" json:"average_rating"`
	TotalReviews    int       `db:"total_reviews" json:"total_reviews"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Public returns a copy safe to show to other users.
func (u User) Public() User {
	u.Email = ""
	u.PasswordHash = ""
	return u
}

// UserFilter captures listing/search criteria.
type UserFilter struct {
	Query     string
	Roles     []UserRole
	ExcludeID string
	Page      int
	PageSize  int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// UpdateProfileRequest carries optional profile edits. Nil fields are left
// untouched.
type UpdateProfileRequest struct {
	Name            *string     `json:"name"`
	Bio             *string     `json:"bio" validate:"omitempty,max=2000"`
	Skills          *string     `json:"skills" validate:"omitempty,max=500"`
	Interests       *string     `json:"interests" validate:"omitempty,max=500"`
	Experience      *string     `json:"experience" validate:"omitempty,max=100"`
	ExperienceYears OptionalInt `json:"experience_years"`
	Role            *string     `json:"role"`
}

// OptionalInt tells an absent JSON field apart from an explicit null or "".
type OptionalInt struct {
	Set   bool
	Value *int
}

func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = nil
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("experience_years must be an integer")
	}
	o.Value = &n
	return nil
}

// UserListQuery is the raw browse/search input from the query string.
type UserListQuery struct {
	Query    string `form:"q"`
	Role     string `form:"role"`
	ShowAll  bool   `form:"show_all"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
