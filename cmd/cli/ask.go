package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sevigo/codezen/internal/wire"
)

var askCmd = &cobra.Command{
	Use:     "ask [project-id] [review-id] [question]",
	Short:   "Ask a follow-up question about a completed review",
	Example: `  codezen-cli ask 1 7 "why is the bare except a problem here?"`,
	Args:    cobra.MinimumNArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		projectID, err := parseID("project id", args[0])
		if err != nil {
			return err
		}
		reviewID, err := parseID("review id", args[1])
		if err != nil {
			return err
		}
		question := strings.TrimSpace(strings.Join(args[2:], " "))
		if question == "" {
			return fmt.Errorf("question must not be empty")
		}

		return withReviewer(func(ctx context.Context, r *wire.Reviewer) error {
			ex, err := r.Conversation.Ask(ctx, projectID, reviewID, question, currentUser())
			if err != nil {
				return fmt.Errorf("failed to ask: %w", err)
			}
			if ex.Fallback {
				warnColor.Println("⚠ The inference service did not answer; a fallback reply was stored.")
			}
			printConversation(ex.History)
			return nil
		})
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(askCmd)
}
