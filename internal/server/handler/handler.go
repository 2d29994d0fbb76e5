package handler

import (
	"context"
	"log/slog"

	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/jobs"
	"github.com/sevigo/codezen/internal/review"
	"github.com/sevigo/codezen/internal/storage"
)

// ReviewService is the part of review.Orchestrator the API uses.
type ReviewService interface {
	jobs.ReviewCompleter
	SubmitForReview(ctx context.Context, projectID int64, code string, user *core.User) (*core.Review, error)
	BeginReview(ctx context.Context, projectID int64, code string, user *core.User) (*core.Review, error)
	ListReviews(ctx context.Context, projectID int64, user *core.User) ([]*core.Review, error)
	GetReview(ctx context.Context, projectID, reviewID int64, user *core.User) (*core.Review, error)
}

// ConversationService is the part of review.Conversation the API uses.
type ConversationService interface {
	Ask(ctx context.Context, projectID, reviewID int64, question string, user *core.User) (*review.Exchange, error)
	ListComments(ctx context.Context, projectID, reviewID int64, user *core.User) ([]*core.ReviewComment, error)
}

// Handler serves the /api/v1 resources.
type Handler struct {
	store        storage.Store
	reviews      ReviewService
	conversation ConversationService
	dispatcher   core.ReviewDispatcher
	limits       config.ServerConfig
	logger       *slog.Logger
}

func New(
	store storage.Store,
	reviews ReviewService,
	conversation ConversationService,
	dispatcher core.ReviewDispatcher,
	limits config.ServerConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		store:        store,
		reviews:      reviews,
		conversation: conversation,
		dispatcher:   dispatcher,
		limits:       limits,
		logger:       logger,
	}
}

// bodyLimit leaves room for JSON framing and escaping around the payload.
func bodyLimit(payload int) int64 {
	return int64(payload)*2 + 4096
}
