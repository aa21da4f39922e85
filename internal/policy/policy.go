// Package policy decides who may do what to a mentorship session. Every
// function is pure; callers load state, policy judges it.
//
// The predicates (CanAcceptOrReject, CanComplete, CanLeaveFeedback,
// CanBrowse) back the allowed_actions hints sent to clients. The Authorize*
// functions are the server side gate and return typed errors.
package policy

import (
	"fmt"

	"github.com/noah-isme/mentorship-api/internal/models"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

// Capabilities is what a role allows, resolved once per request.
type Capabilities struct {
	Browse          bool `json:"can_browse"`
	Request         bool `json:"can_request"`
	ReceiveRequests bool `json:"can_receive_requests"`
	SetExperience   bool `json:"can_set_experience"`
}

var roleCapabilities = map[models.UserRole]Capabilities{
	models.RoleMentor: {ReceiveRequests: true, SetExperience: true},
	models.RoleMentee: {Browse: true, Request: true},
	models.RoleBoth:   {Browse: true, Request: true, ReceiveRequests: true, SetExperience: true},
}

// For returns the capability set of role. Unknown roles get nothing.
func For(role models.UserRole) Capabilities {
	return roleCapabilities[role]
}

// Action names a session operation a client may offer.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionFeedback Action = "leave_feedback"
)

// CanAcceptOrReject is true for the addressed mentor while the session is pending.
func CanAcceptOrReject(user *models.User, session *models.Session) bool {
	return user != nil && session != nil &&
		session.MentorID == user.ID &&
		session.Status == models.SessionPending
}

// CanComplete is true for the requester once the session was accepted.
func CanComplete(user *models.User, session *models.Session) bool {
	if user == nil || session == nil || session.RequesterID != user.ID {
		return false
	}
	return session.Status == models.SessionAccepted || session.Status == models.SessionCompleted
}

// CanLeaveFeedback only looks at status. AuthorizeFeedback adds the identity
// and duplicate checks.
func CanLeaveFeedback(session *models.Session) bool {
	return session != nil && session.Status == models.SessionCompleted
}

// CanBrowse is false for pure mentors.
func CanBrowse(user *models.User) bool {
	return user != nil && For(user.Role).Browse
}

// Actions lists what user may do next with session.
func Actions(user *models.User, session *models.Session) []Action {
	actions := make([]Action, 0, 2)
	if user == nil || session == nil {
		return actions
	}
	if CanAcceptOrReject(user, session) {
		actions = append(actions, ActionAccept, ActionReject)
	}
	if CanComplete(user, session) && session.Status == models.SessionAccepted {
		actions = append(actions, ActionComplete)
	}
	if CanLeaveFeedback(session) && session.RequesterID == user.ID && !session.HasFeedback {
		actions = append(actions, ActionFeedback)
	}
	return actions
}

// ParseTarget validates a requested status string.
func ParseTarget(raw string) (models.SessionStatus, error) {
	status := models.SessionStatus(raw)
	if !status.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown session status %q", raw))
	}
	return status, nil
}

// AuthorizeTransition is the authoritative check for moving session to
// target. Identity is judged before state: a wrong actor gets ErrForbidden
// whatever the status, the right actor on a stale status gets
// ErrInvalidTransition.
func AuthorizeTransition(actor *models.User, session *models.Session, target models.SessionStatus) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !session.Participant(actor.ID) {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not a participant in this session")
	}

	switch target {
	case models.SessionAccepted, models.SessionRejected:
		if session.MentorID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the requested mentor can accept or reject this session")
		}
	case models.SessionCompleted:
		if session.RequesterID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the requester can mark this session completed")
		}
	case models.SessionPending:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "a session cannot return to pending")
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown session status %q", target))
	}

	if !models.CanTransition(session.Status, target) {
		return appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot change session status from %s to %s", session.Status, target))
	}
	return nil
}

// AuthorizeRequest checks that requester may ask mentor for a session. The
// target is validated before the requester's role.
func AuthorizeRequest(requester, mentor *models.User) error {
	if requester == nil {
		return appErrors.ErrUnauthorized
	}
	if mentor != nil && requester.ID == mentor.ID {
		return appErrors.Clone(appErrors.ErrValidation, "you cannot request a session with yourself")
	}
	if mentor == nil || !For(mentor.Role).ReceiveRequests {
		return appErrors.Clone(appErrors.ErrValidation, "selected user is not a mentor")
	}
	if !For(requester.Role).Request {
		return appErrors.Clone(appErrors.ErrForbidden, "mentors cannot request sessions; switch your role to both to request mentorship")
	}
	return nil
}

// AuthorizeFeedback checks that author may review session now.
func AuthorizeFeedback(author *models.User, session *models.Session) error {
	if author == nil {
		return appErrors.ErrUnauthorized
	}
	if session.RequesterID != author.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the requester of a session can leave feedback")
	}
	if !CanLeaveFeedback(session) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "feedback can only be left on completed sessions")
	}
	if session.HasFeedback {
		return appErrors.Clone(appErrors.ErrConflict, "feedback already submitted for this session")
	}
	return nil
}

// ValidateRating enforces the 1..5 scale.
func ValidateRating(rating int) error {
	if rating < models.MinRating || rating > models.MaxRating {
		return appErrors.Clone(appErrors.ErrValidation, "rating must be between 1 and 5")
	}
	return nil
}
