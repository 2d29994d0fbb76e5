package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/codezen/internal/storage"
	"github.com/sevigo/codezen/internal/wire"
)

var (
	codeFile string
	verbose  bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Submit code for review and inspect past reviews",
}

var reviewSubmitCmd = &cobra.Command{
	Use:   "submit [project-id]",
	Short: "Review a code snapshot with the configured model",
	Long: `Review a code snapshot with the configured model.

The code is read from --file, or from stdin when --file is "-" or omitted.
The project's guidelines are included in the prompt.`,
	Example: `  codezen-cli review submit 1 --file main.go
  cat util.py | codezen-cli review submit 2`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		projectID, err := parseID("project id", args[0])
		if err != nil {
			return err
		}
		code, err := readCode(codeFile)
		if err != nil {
			return err
		}
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("code must not be empty")
		}
		if len(code) > cfg.Server.MaxCodeBytes {
			return fmt.Errorf("code exceeds %d bytes", cfg.Server.MaxCodeBytes)
		}

		return withReviewer(func(ctx context.Context, r *wire.Reviewer) error {
			titleColor.Println("🚀 codezen review")
			dimColor.Printf("   Project #%d, %d bytes, model %s\n\n", projectID, len(code), cfg.AI.Model)

			start := time.Now()
			rev, err := r.Orchestrator.SubmitForReview(ctx, projectID, code, currentUser())
			if err != nil {
				return fmt.Errorf("failed to review code: %w", err)
			}
			if verbose {
				dimColor.Printf("⏱️  Total time: %s\n", time.Since(start).Round(time.Millisecond))
			}
			printReview(rev)
			return nil
		})
	},
}

var reviewListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List the reviews of a project, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		projectID, err := parseID("project id", args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, store storage.Store) error {
			if _, err := store.GetProject(ctx, projectID, currentUser().ID); err != nil {
				return fmt.Errorf("failed to load project: %w", err)
			}
			reviews, err := store.ListReviews(ctx, projectID)
			if err != nil {
				return fmt.Errorf("failed to list reviews: %w", err)
			}
			if len(reviews) == 0 {
				dimColor.Println("No reviews yet.")
				return nil
			}
			for _, rev := range reviews {
				printReviewLine(rev)
			}
			return nil
		})
	},
}

var reviewShowCmd = &cobra.Command{
	Use:   "show [project-id] [review-id]",
	Short: "Show a review with its conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		projectID, err := parseID("project id", args[0])
		if err != nil {
			return err
		}
		reviewID, err := parseID("review id", args[1])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, store storage.Store) error {
			if _, err := store.GetProject(ctx, projectID, currentUser().ID); err != nil {
				return fmt.Errorf("failed to load project: %w", err)
			}
			rev, err := store.GetReview(ctx, reviewID, projectID)
			if err != nil {
				return fmt.Errorf("failed to load review: %w", err)
			}
			comments, err := store.ListComments(ctx, rev.ID)
			if err != nil {
				return fmt.Errorf("failed to list comments: %w", err)
			}
			printReview(rev)
			printConversation(comments)
			return nil
		})
	},
}

func readCode(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read code from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func init() { //nolint:gochecknoinits // Cobra command registration
	reviewSubmitCmd.Flags().StringVarP(&codeFile, "file", "f", "", "File with the code to review (default stdin)")
	reviewSubmitCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print timing information")
	reviewCmd.AddCommand(reviewSubmitCmd, reviewListCmd, reviewShowCmd)
	rootCmd.AddCommand(reviewCmd)
}
