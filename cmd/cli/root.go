package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/logger"
	"github.com/sevigo/codezen/internal/storage"
	"github.com/sevigo/codezen/internal/wire"
)

var (
	userID    int64
	userEmail string

	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "codezen-cli",
	Short: "codezen-cli manages projects and runs code reviews against the local codezen database.",
	Long: `A CLI for codezen. Commands run in-process against the configured database
and inference service, acting as the user given by --user.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w\n\nTip: Check that your config.yaml exists and is valid", err)
		}
		cfg = loaded
		// Logs go to stderr so command output stays clean.
		log = logger.NewLogger(cfg.Logging, os.Stderr)
		slog.SetDefault(log)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.PersistentFlags().Int64VarP(&userID, "user", "u", 1, "ID of the user the command acts as")
	rootCmd.PersistentFlags().StringVar(&userEmail, "email", "", "Email of the acting user")
}

func currentUser() *core.User {
	return &core.User{ID: userID, Email: userEmail}
}

// withStore opens the database for commands that never call the model.
func withStore(fn func(ctx context.Context, store storage.Store) error) error {
	store, cleanup, err := wire.InitializeStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer cleanup()
	return fn(context.Background(), store)
}

// withReviewer builds the review services, including the inference gateway.
func withReviewer(fn func(ctx context.Context, r *wire.Reviewer) error) error {
	ctx := context.Background()
	reviewer, cleanup, err := wire.InitializeReviewer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize reviewer: %w", err)
	}
	defer cleanup()
	return fn(ctx, reviewer)
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, raw)
	}
	return id, nil
}
