package review

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/events"
	"github.com/sevigo/codezen/internal/llm"
	"github.com/sevigo/codezen/internal/metrics"
	"github.com/sevigo/codezen/internal/storage"
)

// FallbackAnswer is stored as the AI comment when the inference service fails.
const FallbackAnswer = "I apologize, but I'm currently unable to answer. Please try again later."

// Exchange is the result of one question about a review.
type Exchange struct {
	Question *core.ReviewComment
	Answer   *core.ReviewComment
	// History is the full conversation after this exchange, in order.
	History  []*core.ReviewComment
	Fallback bool
}

// Conversation manages follow-up questions about completed reviews.
type Conversation struct {
	store     storage.Store
	prompts   *llm.PromptManager
	gateway   llm.Gateway
	publisher events.Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration
	logger    *slog.Logger

	locksMu sync.Mutex
	locks   map[int64]*reviewLock
}

// reviewLock serialises asks on one review. refs counts holders and
// waiters; the entry is dropped when it reaches zero.
type reviewLock struct {
	mu   sync.Mutex
	refs int
}

func NewConversation(
	store storage.Store,
	prompts *llm.PromptManager,
	gateway llm.Gateway,
	publisher events.Publisher,
	m *metrics.Metrics,
	timeout time.Duration,
	logger *slog.Logger,
) *Conversation {
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
	return &Conversation{
		store:     store,
		prompts:   prompts,
		gateway:   gateway,
		publisher: publisher,
		metrics:   m,
		timeout:   timeout,
		logger:    logger,
		locks:     make(map[int64]*reviewLock),
	}
}

// Ask records the user's question, asks the model about the review and
// records the answer. Questions on one review are answered one at a time so
// each prompt sees the complete history before it.
func (c *Conversation) Ask(ctx context.Context, projectID, reviewID int64, question string, user *core.User) (*Exchange, error) {
	review, err := c.resolveReview(ctx, projectID, reviewID, user)
	if err != nil {
		return nil, err
	}
	if review.IsPending() {
		return nil, fmt.Errorf("review %d: %w", reviewID, core.ErrReviewPending)
	}

	unlock := c.lock(reviewID)
	defer unlock()

	history, err := c.store.ListComments(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	q := &core.ReviewComment{
		Message:   question,
		Role:      core.RoleUser,
		Timestamp: core.Now(),
		ReviewID:  reviewID,
		UserID:    user.ID,
	}
	if err := c.store.AppendComment(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to store question: %w", err)
	}

	prompt, err := c.prompts.BuildChatPrompt(question, review, history)
	if err != nil {
		return nil, fmt.Errorf("failed to build chat prompt: %w", err)
	}

	answer, fallback := callGateway(ctx, c.gateway, c.timeout, c.logger, prompt, "review_id", reviewID)
	if fallback {
		answer = FallbackAnswer
	}

	// The question is stored, so its answer must be too even if the caller
	// is gone.
	ctx, cancel := detached(ctx)
	defer cancel()

	// Timestamps have second precision; the answer must still sort after
	// the question.
	answeredAt := core.Now()
	if !answeredAt.After(q.Timestamp) {
		answeredAt = q.Timestamp.Add(time.Second)
	}
	a := &core.ReviewComment{
		Message:   answer,
		Role:      core.RoleAI,
		Timestamp: answeredAt,
		ReviewID:  reviewID,
		UserID:    user.ID,
	}
	if err := c.store.AppendComment(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}

	c.metrics.RecordCommentAnswered(fallback)
	c.logger.Info("question answered", "review_id", reviewID, "project_id", projectID, "fallback", fallback)
	if err := c.publisher.Publish(ctx, core.CommentAnsweredEvent(projectID, a, fallback)); err != nil {
		c.logger.Warn("failed to publish event", "type", core.EventCommentAnswered, "review_id", reviewID, "error", err)
	}

	full := make([]*core.ReviewComment, 0, len(history)+2)
	full = append(full, history...)
	full = append(full, q, a)
	return &Exchange{Question: q, Answer: a, History: full, Fallback: fallback}, nil
}

// ListComments returns a review's conversation if the user owns its project.
func (c *Conversation) ListComments(ctx context.Context, projectID, reviewID int64, user *core.User) ([]*core.ReviewComment, error) {
	if _, err := c.resolveReview(ctx, projectID, reviewID, user); err != nil {
		return nil, err
	}
	return c.store.ListComments(ctx, reviewID)
}

func (c *Conversation) resolveReview(ctx context.Context, projectID, reviewID int64, user *core.User) (*core.Review, error) {
	if _, err := c.store.GetProject(ctx, projectID, user.ID); err != nil {
		return nil, err
	}
	return c.store.GetReview(ctx, reviewID, projectID)
}

// lock blocks until the caller holds the lock for reviewID and returns the
// function that releases it.
func (c *Conversation) lock(reviewID int64) func() {
	c.locksMu.Lock()
	l, ok := c.locks[reviewID]
	if !ok {
		l = &reviewLock{}
		c.locks[reviewID] = l
	}
	l.refs++
	c.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		c.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, reviewID)
		}
		c.locksMu.Unlock()
	}
}
