//go:build wireinject
// +build wireinject

package wire

import (
	"context"
	"log/slog"

	"github.com/google/wire"

	"github.com/sevigo/codezen/internal/app"
	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/storage"
)

func InitializeApp(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
	wire.Build(AppSet)
	return &app.App{}, nil, nil
}

// InitializeStore opens only the database, for commands that never call
// the model.
func InitializeStore(cfg *config.Config) (storage.Store, func(), error) {
	wire.Build(StoreSet)
	return nil, nil, nil
}

// InitializeReviewer builds the review and conversation services without the
// HTTP stack.
func InitializeReviewer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Reviewer, func(), error) {
	wire.Build(ReviewSet, wire.Struct(new(Reviewer), "*"))
	return nil, nil, nil
}
