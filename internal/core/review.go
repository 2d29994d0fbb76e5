package core

import "time"

// ReviewStatus tracks the two-phase lifecycle of a review row.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewCompleted ReviewStatus = "completed"
)

// Review is a single code snapshot submitted for AI review. CodeSnapshot is
// immutable; LLMResponse and EffortEstimation are set exactly once when the
// review moves from pending to completed.
type Review struct {
	ID               int64        `db:"id"`
	Timestamp        time.Time    `db:"created_at"`
	CodeSnapshot     string       `db:"code_snapshot"`
	LLMResponse      *string      `db:"llm_response"`
	EffortEstimation *string      `db:"effort_estimation"`
	Status           ReviewStatus `db:"status"`
	CompletedAt      *time.Time   `db:"completed_at"`
	ProjectID        int64        `db:"project_id"`
	UserID           int64        `db:"user_id"`
}

// IsPending reports whether the inference reply has not been stored yet.
func (r *Review) IsPending() bool {
	return r.Status != ReviewCompleted
}

// Role identifies the author of a review comment.
type Role string

const (
	RoleUser Role = "USER"
	RoleAI   Role = "AI"
)

// ReviewComment is one message in the conversation attached to a review.
// Comments are append-only; Seq is assigned by the store and strictly
// increases per review.
type ReviewComment struct {
	ID        int64     `db:"id"`
	Message   string    `db:"message"`
	Role      Role      `db:"role"`
	Timestamp time.Time `db:"created_at"`
	Seq       int64     `db:"seq"`
	ReviewID  int64     `db:"review_id"`
	UserID    int64     `db:"user_id"`
}

// Now returns the current time in UTC with the second precision used for
// every persisted timestamp.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
