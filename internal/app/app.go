// Package app runs the codezen service: the HTTP API in front of the
// background completion workers.
package app

import (
	"context"
	"log/slog"

	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/jobs"
	"github.com/sevigo/codezen/internal/server"
	"github.com/sevigo/codezen/internal/storage"
)

// App holds the main application components.
type App struct {
	cfg        *config.Config
	server     *server.Server
	store      storage.Store
	completer  jobs.ReviewCompleter
	dispatcher core.ReviewDispatcher
	logger     *slog.Logger
}

func NewApp(
	cfg *config.Config,
	srv *server.Server,
	store storage.Store,
	completer jobs.ReviewCompleter,
	dispatcher core.ReviewDispatcher,
	logger *slog.Logger,
) *App {
	return &App{
		cfg:        cfg,
		server:     srv,
		store:      store,
		completer:  completer,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start requeues reviews left pending by a previous run and then serves
// HTTP until Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("starting codezen",
		"server_port", a.cfg.Server.Port,
		"provider", a.cfg.AI.Provider,
		"model", a.cfg.AI.Model,
		"max_workers", a.cfg.Review.MaxWorkers)

	// A failed resume leaves reviews pending until the next start; serve anyway.
	if _, err := jobs.ResumePending(ctx, a.store, a.dispatcher, a.completer, a.logger); err != nil {
		a.logger.Error("failed to resume pending reviews", "error", err)
	}

	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the application cleanly. The publisher and the database
// pool are closed afterwards by the cleanup returned from the injector.
func (a *App) Stop() error {
	a.logger.Info("shutting down codezen services")

	// Stop the HTTP server first to prevent new incoming requests.
	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
		// Continue to stop the workers even if the server failed.
	}

	// In-flight completions finish before the workers exit.
	a.dispatcher.Stop()

	if serverErr != nil {
		a.logger.Error("codezen stopped with errors", "error", serverErr)
		return serverErr
	}

	a.logger.Info("codezen stopped successfully")
	return nil
}
