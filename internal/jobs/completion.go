package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/storage"
)

// ReviewCompleter finishes pending reviews. review.Orchestrator satisfies it.
type ReviewCompleter interface {
	CompleteReview(ctx context.Context, r *core.Review) (*core.Review, error)
	AbandonReview(ctx context.Context, r *core.Review) (*core.Review, error)
}

// CompletionJob loads a pending review and runs inference for it.
type CompletionJob struct {
	store     storage.Store
	completer ReviewCompleter
	logger    *slog.Logger
}

func NewCompletionJob(store storage.Store, completer ReviewCompleter, logger *slog.Logger) core.Job {
	if store == nil {
		panic("store cannot be nil")
	}
	if completer == nil {
		panic("completer cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &CompletionJob{store: store, completer: completer, logger: logger}
}

// Run completes the review. Reviews that are gone or already completed are
// skipped without error.
func (j *CompletionJob) Run(ctx context.Context, reviewID int64) error {
	r, err := j.store.GetReviewByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			j.logger.Warn("review vanished before completion", "review_id", reviewID)
			return nil
		}
		return fmt.Errorf("failed to load review: %w", err)
	}
	if !r.IsPending() {
		j.logger.Debug("review already completed", "review_id", reviewID)
		return nil
	}

	if _, err := j.completer.CompleteReview(ctx, r); err != nil {
		return fmt.Errorf("failed to complete review %d: %w", reviewID, err)
	}
	return nil
}

// DispatchOrAbandon queues a pending review. When the dispatcher refuses it
// the review is completed immediately with the fallback reply, so it never
// stays pending.
func DispatchOrAbandon(ctx context.Context, d core.ReviewDispatcher, c ReviewCompleter, r *core.Review, logger *slog.Logger) (*core.Review, error) {
	err := d.Dispatch(ctx, r.ID)
	if err == nil {
		return r, nil
	}

	logger.Warn("could not queue review, completing with fallback", "review_id", r.ID, "error", err)
	return c.AbandonReview(ctx, r)
}

// ResumePending re-queues every review left pending by a previous run.
func ResumePending(ctx context.Context, store storage.Store, d core.ReviewDispatcher, c ReviewCompleter, logger *slog.Logger) (int, error) {
	pending, err := store.ListPendingReviews(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending reviews: %w", err)
	}

	for _, r := range pending {
		if _, err := DispatchOrAbandon(ctx, d, c, r, logger); err != nil {
			return 0, fmt.Errorf("failed to resume review %d: %w", r.ID, err)
		}
	}
	if len(pending) > 0 {
		logger.Info("resumed pending reviews", "count", len(pending))
	}
	return len(pending), nil
}
