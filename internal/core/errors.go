package core

import "errors"

var (
	// ErrNotFound covers both missing records and records owned by another
	// user. Callers must not be able to tell the two apart.
	ErrNotFound = errors.New("not found")

	// ErrReviewPending is returned when a conversation is started on a review
	// whose inference reply has not been stored yet.
	ErrReviewPending = errors.New("review is still pending")
)
