// Package review coordinates the store, the prompt builder and the inference
// gateway for code reviews and the follow-up conversation about them.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/events"
	"github.com/sevigo/codezen/internal/llm"
	"github.com/sevigo/codezen/internal/metrics"
	"github.com/sevigo/codezen/internal/storage"
)

// FallbackReview is stored as the reply when the inference service fails.
const FallbackReview = "Error: Unable to reach the inference service. Please ensure Ollama is running and try again."

// storeTimeout bounds the writes that follow an inference call.
const storeTimeout = 10 * time.Second

// Orchestrator runs the submit, infer, complete flow for reviews.
type Orchestrator struct {
	store     storage.Store
	prompts   *llm.PromptManager
	gateway   llm.Gateway
	publisher events.Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration
	logger    *slog.Logger
}

// NewOrchestrator wires an Orchestrator. timeout bounds every gateway call;
// zero means the caller's context is the only limit.
func NewOrchestrator(
	store storage.Store,
	prompts *llm.PromptManager,
	gateway llm.Gateway,
	publisher events.Publisher,
	m *metrics.Metrics,
	timeout time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if store == nil {
		panic("store cannot be nil")
	}
	if prompts == nil {
		panic("prompt manager cannot be nil")
	}
	if gateway == nil {
		panic("gateway cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Orchestrator{
		store:     store,
		prompts:   prompts,
		gateway:   gateway,
		publisher: publisher,
		metrics:   m,
		timeout:   timeout,
		logger:    logger,
	}
}

// SubmitForReview stores the snapshot, asks the model for a review and
// returns the completed review. A failing inference call still completes the
// review, with FallbackReview as its reply.
func (o *Orchestrator) SubmitForReview(ctx context.Context, projectID int64, code string, user *core.User) (*core.Review, error) {
	r, err := o.BeginReview(ctx, projectID, code, user)
	if err != nil {
		return nil, err
	}
	done, err := o.CompleteReview(ctx, r)
	if err != nil && ctx.Err() != nil {
		// Cancelled before the model was asked; do not leave the row pending.
		o.logger.Warn("review cancelled before inference, completing with fallback", "review_id", r.ID, "error", err)
		return o.AbandonReview(ctx, r)
	}
	return done, err
}

// BeginReview persists a pending review for a project the user owns.
func (o *Orchestrator) BeginReview(ctx context.Context, projectID int64, code string, user *core.User) (*core.Review, error) {
	if _, err := o.store.GetProject(ctx, projectID, user.ID); err != nil {
		return nil, err
	}

	r := &core.Review{
		CodeSnapshot: code,
		ProjectID:    projectID,
		UserID:       user.ID,
	}
	if err := o.store.CreateReview(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	o.logger.Info("review created", "review_id", r.ID, "project_id", projectID, "user_id", user.ID, "code_bytes", len(code))
	return r, nil
}

// CompleteReview runs inference for a pending review and stores the result.
// If another worker completed the review first, the stored row is returned.
func (o *Orchestrator) CompleteReview(ctx context.Context, r *core.Review) (*core.Review, error) {
	if !r.IsPending() {
		return r, nil
	}

	// The submitter owns the project, which is the only way a review exists.
	project, err := o.store.GetProject(ctx, r.ProjectID, r.UserID)
	if err != nil {
		return nil, err
	}
	guidelines, err := o.store.ListGuidelines(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	prompt, err := o.prompts.BuildReviewPrompt(r.CodeSnapshot, project.Language, core.RuleTexts(guidelines))
	if err != nil {
		return nil, fmt.Errorf("failed to build review prompt: %w", err)
	}

	reply, fallback := o.infer(ctx, prompt, "review_id", r.ID)
	return o.finish(ctx, r, reply, fallback)
}

// AbandonReview completes a pending review with FallbackReview without
// calling the model. It is used when a review cannot be queued.
func (o *Orchestrator) AbandonReview(ctx context.Context, r *core.Review) (*core.Review, error) {
	if !r.IsPending() {
		return r, nil
	}
	return o.finish(ctx, r, "", true)
}

// finish stores the reply. The write runs detached from ctx: a caller that
// went away must not leave the review pending.
func (o *Orchestrator) finish(ctx context.Context, r *core.Review, reply string, fallback bool) (*core.Review, error) {
	ctx, cancel := detached(ctx)
	defer cancel()

	var effort *string
	if fallback {
		reply = FallbackReview
	} else {
		effort = llm.ExtractEffortEstimation(reply)
		o.metrics.RecordEffortExtraction(effort != nil)
	}

	completedAt := core.Now()
	if err := o.store.CompleteReview(ctx, r.ID, reply, effort, completedAt); err != nil {
		if errors.Is(err, storage.ErrAlreadyCompleted) {
			o.logger.Warn("review was completed concurrently", "review_id", r.ID)
			return o.store.GetReviewByID(ctx, r.ID)
		}
		return nil, err
	}

	r.LLMResponse = &reply
	r.EffortEstimation = effort
	r.Status = core.ReviewCompleted
	r.CompletedAt = &completedAt

	o.metrics.RecordReviewCompleted(fallback)
	o.logger.Info("review completed", "review_id", r.ID, "project_id", r.ProjectID, "fallback", fallback)
	o.publish(ctx, core.ReviewCompletedEvent(r, fallback))
	return r, nil
}

// ListReviews returns the reviews of a project the user owns, newest first.
func (o *Orchestrator) ListReviews(ctx context.Context, projectID int64, user *core.User) ([]*core.Review, error) {
	if _, err := o.store.GetProject(ctx, projectID, user.ID); err != nil {
		return nil, err
	}
	return o.store.ListReviews(ctx, projectID)
}

func (o *Orchestrator) GetReview(ctx context.Context, projectID, reviewID int64, user *core.User) (*core.Review, error) {
	if _, err := o.store.GetProject(ctx, projectID, user.ID); err != nil {
		return nil, err
	}
	return o.store.GetReview(ctx, reviewID, projectID)
}

// infer calls the gateway under the configured timeout. The second result is
// true when the call failed and a fallback must be used instead.
func (o *Orchestrator) infer(ctx context.Context, prompt string, logArgs ...any) (string, bool) {
	return callGateway(ctx, o.gateway, o.timeout, o.logger, prompt, logArgs...)
}

func (o *Orchestrator) publish(ctx context.Context, event core.Event) {
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("failed to publish event", "type", event.Type, "review_id", event.ReviewID, "error", err)
	}
}

// detached keeps ctx values but drops its cancellation, bounding the
// remaining store writes by storeTimeout instead.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
}

func callGateway(ctx context.Context, gateway llm.Gateway, timeout time.Duration, logger *slog.Logger, prompt string, logArgs ...any) (string, bool) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reply, err := gateway.Submit(ctx, prompt)
	if err != nil {
		args := append([]any{"error", err}, logArgs...)
		var gwErr *llm.GatewayError
		if errors.As(err, &gwErr) {
			args = append(args, "kind", gwErr.Kind, "status_code", gwErr.StatusCode)
		}
		logger.Warn("inference call failed, using fallback", args...)
		return "", true
	}
	return reply, false
}
