package models

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Feedback is the single review a requester leaves on a completed session.
type Feedback struct {
	ID           string    `db:"id" json:"id"`
	SessionID    string    `db:"session_id" json:"session_id"`
	AuthorID     string    `db:"author_id" json:"author_id"`
	AuthorName   string    `db:"author_name" json:"author_name"`
	TargetUserID string    `db:"target_user_id" json:"target_user_id"`
	Rating       int       `db:"rating" json:"rating"`
	Comment      string    `db:"comment" json:"comment"`
	SessionTopic string    `db:"session_topic" json:"session_topic,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CreateFeedbackRequest is the payload for rating a session.
type CreateFeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=2000"`
}

// RatingSummary is the denormalised aggregate stored on users.
type RatingSummary struct {
	UserID        string   `db:"id" json:"user_id"`
	AverageRating *float64 `db:"average_rating" json:"average_rating"`
	TotalReviews  int      `db:"total_reviews" json:"total_reviews"`
}

// FeedbackResult is returned after a review is stored.
type FeedbackResult struct {
	Feedback Feedback      `json:"feedback"`
	Rating   RatingSummary `json:"rating"`
}
