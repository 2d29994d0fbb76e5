package core

import "time"

// EventType names the domain events emitted after a state change.
type EventType string

const (
	EventReviewCompleted EventType = "review.completed"
	EventCommentAnswered EventType = "comment.answered"
)

// Event is a notification that a review or conversation changed. It carries
// identifiers only; consumers re-read the records they care about.
type Event struct {
	Type       EventType `json:"type"`
	ReviewID   int64     `json:"review_id"`
	ProjectID  int64     `json:"project_id"`
	UserID     int64     `json:"user_id"`
	CommentID  int64     `json:"comment_id,omitempty"`
	Fallback   bool      `json:"fallback"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReviewCompletedEvent builds the event emitted once a review leaves the
// pending state.
func ReviewCompletedEvent(r *Review, fallback bool) Event {
	return Event{
		Type:       EventReviewCompleted,
		ReviewID:   r.ID,
		ProjectID:  r.ProjectID,
		UserID:     r.UserID,
		Fallback:   fallback,
		OccurredAt: Now(),
	}
}

// CommentAnsweredEvent builds the event emitted after an AI answer is stored.
func CommentAnsweredEvent(projectID int64, answer *ReviewComment, fallback bool) Event {
	return Event{
		Type:       EventCommentAnswered,
		ReviewID:   answer.ReviewID,
		ProjectID:  projectID,
		UserID:     answer.UserID,
		CommentID:  answer.ID,
		Fallback:   fallback,
		OccurredAt: Now(),
	}
}
