package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/internal/repository"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

// memoryStore backs the user, session and feedback repository interfaces
// with maps and mimics the row locking of the SQL implementation with a
// single mutex.
type memoryStore struct {
	mu        sync.Mutex
	users     map[string]models.User
	sessions  map[string]models.Session
	feedback  []models.Feedback
	logins    map[string]models.AuthSession
	audits    []models.AuditLog
	listCalls int
	updates   int
}

func newMemoryStore(users ...models.User) *memoryStore {
	s := &memoryStore{
		users:    make(map[string]models.User),
		sessions: make(map[string]models.Session),
		logins:   make(map[string]models.AuthSession),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == strings.ToLower(email) {
			found := u
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memoryStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (s *memoryStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	return nil
}

func (s *memoryStore) UpdateProfile(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	s.users[user.ID] = *user
	return nil
}

func (s *memoryStore) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	var out []models.User
	for _, u := range s.users {
		if u.ID == filter.ExcludeID {
			continue
		}
		if len(filter.Roles) > 0 {
			match := false
			for _, r := range filter.Roles {
				match = match || u.Role == r
			}
			if !match {
				continue
			}
		}
		if q := strings.ToLower(filter.Query); q != "" &&
			!strings.Contains(strings.ToLower(u.Name+" "+u.Skills+" "+u.Interests), q) {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (s *memoryStore) CreateAuthSession(_ context.Context, session *models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	s.logins[session.TokenHash] = *session
	return nil
}

func (s *memoryStore) FindAuthSession(_ context.Context, tokenHash string) (*models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.logins[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &session, nil
}

func (s *memoryStore) FindAuthSessionByID(_ context.Context, id string) (*models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.logins {
		if session.ID == id {
			return &session, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memoryStore) RevokeAuthSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, session := range s.logins {
		if session.ID == id && session.RevokedAt == nil {
			session.RevokedAt = &at
			s.logins[hash] = session
		}
	}
	return nil
}

func (s *memoryStore) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *log)
	return nil
}

func (s *memoryStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, len(s.audits))
	for i, a := range s.audits {
		actions[i] = a.Action
	}
	return actions
}

// session repository

func (s *memoryStore) HasOpenRequest(_ context.Context, requesterID, mentorID, topic string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.RequesterID == requesterID && sess.MentorID == mentorID && sess.Topic == topic &&
			(sess.Status == models.SessionPending || sess.Status == models.SessionAccepted) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) createSession(session *models.Session) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.Status = models.SessionPending
	session.MeetingLink = nil
	s.sessions[session.ID] = *session
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	sess.HasFeedback = s.hasFeedback(id)
	return &sess, nil
}

func (s *memoryStore) ListForUser(_ context.Context, userID string) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Session{}
	for _, sess := range s.sessions {
		if sess.RequesterID == userID || sess.MentorID == userID {
			sess.HasFeedback = s.hasFeedback(sess.ID)
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *memoryStore) Transition(_ context.Context, id string, decide func(*models.Session) (*repository.SessionUpdate, error)) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	sess.HasFeedback = s.hasFeedback(id)
	update, err := decide(&sess)
	if err != nil {
		return nil, err
	}
	if update == nil {
		return &sess, nil
	}
	s.updates++
	sess.Status = update.Status
	if update.MeetingLink != nil {
		sess.MeetingLink = update.MeetingLink
	}
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[id] = sess
	return &sess, nil
}

// feedback repository

func (s *memoryStore) hasFeedback(sessionID string) bool {
	for _, fb := range s.feedback {
		if fb.SessionID == sessionID {
			return true
		}
	}
	return false
}

func (s *memoryStore) createFeedback(fb *models.Feedback, authorize func(*models.Session) error) (*models.RatingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[fb.SessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	sess.HasFeedback = s.hasFeedback(sess.ID)
	if err := authorize(&sess); err != nil {
		return nil, err
	}
	if sess.HasFeedback {
		return nil, repository.ErrDuplicate
	}
	fb.ID = uuid.NewString()
	fb.TargetUserID = sess.MentorID
	fb.SessionTopic = sess.Topic
	fb.CreatedAt = time.Now().UTC()
	s.feedback = append(s.feedback, *fb)

	var sum, count int
	for _, f := range s.feedback {
		if f.TargetUserID == sess.MentorID {
			sum += f.Rating
			count++
		}
	}
	avg := float64(int(float64(sum)/float64(count)*10+0.5)) / 10
	mentor := s.users[sess.MentorID]
	mentor.AverageRating = &avg
	mentor.TotalReviews = count
	s.users[sess.MentorID] = mentor
	return &models.RatingSummary{UserID: mentor.ID, AverageRating: &avg, TotalReviews: count}, nil
}

func (s *memoryStore) ListByTarget(_ context.Context, userID string) ([]models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Feedback{}
	for i := len(s.feedback) - 1; i >= 0; i-- {
		if s.feedback[i].TargetUserID == userID {
			out = append(out, s.feedback[i])
		}
	}
	return out, nil
}

func (s *memoryStore) RatingSummary(_ context.Context, userID string) (*models.RatingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.RatingSummary{UserID: u.ID, AverageRating: u.AverageRating, TotalReviews: u.TotalReviews}, nil
}

// sessionStore and feedbackStore give the shared store the Create method
// each repository interface expects.
type sessionStore struct{ *memoryStore }

func (s sessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createSession(session)
	return nil
}

type feedbackStore struct{ *memoryStore }

func (s feedbackStore) Create(_ context.Context, fb *models.Feedback, authorize func(*models.Session) error) (*models.RatingSummary, error) {
	return s.createFeedback(fb, authorize)
}

type memoryCache struct {
	mu          sync.Mutex
	store       map[string][]byte
	invalidated []string
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.store[key] = payload
	return nil
}

func (c *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.store {
		if strings.HasPrefix(key, prefix) {
			delete(c.store, key)
		}
	}
	return nil
}

func newUser(name string, role models.UserRole) models.User {
	return models.User{
		ID:    uuid.NewString(),
		Email: strings.ToLower(name) + "@example.com",
		Name:  name,
		Role:  role,
	}
}
