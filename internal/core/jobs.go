package core

import (
	"context"
)

// ReviewDispatcher accepts pending reviews and completes them in the
// background. It decouples the HTTP request that creates the pending row from
// the slow inference call.
type ReviewDispatcher interface {
	// Dispatch queues a pending review for completion. It returns an error if
	// the review cannot be queued, for example when the queue is full.
	Dispatch(ctx context.Context, reviewID int64) error

	// Stop waits for queued reviews to finish.
	Stop()
}

// Job is a unit of work executed by the dispatcher for one review id.
type Job interface {
	Run(ctx context.Context, reviewID int64) error
}
