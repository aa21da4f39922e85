// Package sessioncookie carries the opaque login token in a signed,
// HTTP-only browser cookie.
package sessioncookie

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/noah-isme/mentorship-api/pkg/config"
)

const tokenKey = "token"

// Store reads and writes the login cookie.
type Store struct {
	cookies *sessions.CookieStore
	name    string
}

// New builds a cookie store signed with cfg.Secret.
func New(cfg config.SessionConfig) *Store {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.TTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	name := cfg.CookieName
	if name == "" {
		name = "mentorship_session"
	}
	return &Store{cookies: store, name: name}
}

// Token returns the token held by the request cookie, or "" when the cookie is
// absent or fails signature verification.
func (s *Store) Token(r *http.Request) string {
	if s == nil {
		return ""
	}
	session, err := s.cookies.Get(r, s.name)
	if err != nil {
		return ""
	}
	token, _ := session.Values[tokenKey].(string)
	return token
}

// Save writes token into the response cookie.
func (s *Store) Save(w http.ResponseWriter, r *http.Request, token string) error {
	session, _ := s.cookies.Get(r, s.name)
	session.Values[tokenKey] = token
	return session.Save(r, w)
}

// Clear expires the cookie on the client.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.cookies.Get(r, s.name)
	delete(session.Values, tokenKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
