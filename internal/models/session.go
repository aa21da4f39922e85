package models

import "time"

// SessionStatus is the lifecycle state of a mentorship session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionAccepted  SessionStatus = "accepted"
	SessionRejected  SessionStatus = "rejected"
	SessionCompleted SessionStatus = "completed"
)

// sessionTransitions lists every legal edge. completed->completed is the
// idempotent re-completion by the requester.
var sessionTransitions = map[SessionStatus]map[SessionStatus]struct{}{
	SessionPending: {
		SessionAccepted: {},
		SessionRejected: {},
	},
	SessionAccepted: {
		SessionCompleted: {},
	},
	SessionCompleted: {
		SessionCompleted: {},
	},
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionPending, SessionAccepted, SessionRejected, SessionCompleted:
		return true
	}
	return false
}

// CanTransition reports whether to is reachable from from in one step.
func CanTransition(from, to SessionStatus) bool {
	next, ok := sessionTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Session is one mentorship engagement between a requester and a mentor.
type Session struct {
	ID            string        `db:"id" json:"id"`
	RequesterID   string        `db:"requester_id" json:"requester_id"`
	MentorID      string        `db:"mentor_id" json:"mentor_id"`
	RequesterName string        `db:"requester_name" json:"requester_name"`
	MentorName    string        `db:"mentor_name" json:"mentor_name"`
	Topic         string        `db:"topic" json:"topic"`
	Description   string        `db:"description" json:"description"`
	ScheduledTime *time.Time    `db:"scheduled_time" json:"scheduled_time"`
	MeetingLink   *string       `db:"meeting_link" json:"meeting_link"`
	Status        SessionStatus `db:"status" json:"status"`
	HasFeedback   bool          `db:"has_feedback" json:"has_feedback"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Participant reports whether userID is on either side of the session.
func (s *Session) Participant(userID string) bool {
	return s != nil && userID != "" && (s.RequesterID == userID || s.MentorID == userID)
}

// CreateSessionRequest is the payload for requesting a session.
type CreateSessionRequest struct {
	MentorID      string `json:"mentor_id" validate:"required"`
	Topic         string `json:"topic" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=5000"`
	ScheduledTime string `json:"scheduled_time"`
}

// UpdateSessionStatusRequest moves a session along the lifecycle.
type UpdateSessionStatusRequest struct {
	Status      string `json:"status" validate:"required"`
	MeetingLink string `json:"meeting_link" validate:"omitempty,max=500,url"`
}

// SessionView is a session plus the actions its viewer may take next.
type SessionView struct {
	Session
	AllowedActions []string `json:"allowed_actions"`
}
