package storage

import "errors"

// ErrAlreadyCompleted is returned when a review that already left the pending
// state is completed a second time.
var ErrAlreadyCompleted = errors.New("review already completed")
