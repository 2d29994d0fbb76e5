package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/storage"
)

var guidelineCmd = &cobra.Command{
	Use:   "guideline",
	Short: "Manage the review guidelines of a project",
}

var guidelineAddCmd = &cobra.Command{
	Use:     "add [project-id] [rule]",
	Short:   "Add a guideline to a project",
	Example: `  codezen-cli guideline add 1 "wrap errors with context"`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		projectID, err := parseID("project id", args[0])
		if err != nil {
			return err
		}
		rule := strings.Join(args[1:], " ")
		if strings.TrimSpace(rule) == "" {
			return fmt.Errorf("rule must not be empty")
		}
		return withStore(func(ctx context.Context, store storage.Store) error {
			if _, err := store.GetProject(ctx, projectID, currentUser().ID); err != nil {
				return fmt.Errorf("failed to load project: %w", err)
			}
			g := &core.Guideline{RuleText: rule, ProjectID: projectID}
			if err := store.AddGuideline(ctx, g); err != nil {
				return fmt.Errorf("failed to add guideline: %w", err)
			}
			successColor.Printf("✓ Added guideline #%d\n", g.ID)
			return nil
		})
	},
}

var guidelineListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List the guidelines of a project in prompt order",
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
			guidelines, err := store.ListGuidelines(ctx, projectID)
			if err != nil {
				return fmt.Errorf("failed to list guidelines: %w", err)
			}
			printGuidelines(guidelines)
			return nil
		})
	},
}

var guidelineImportCmd = &cobra.Command{
	Use:   "import [project-id] [file.yaml]",
	Short: "Import the rules of a YAML guideline pack into a project",
	Long: `Import the rules of a YAML guideline pack into a project. The file looks like:

  language: go
  guidelines:
    - "wrap errors with context"
    - "no naked returns"`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		projectID, err := parseID("project id", args[0])
		if err != nil {
			return err
		}
		pack, err := config.LoadGuidelinePack(args[1])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, store storage.Store) error {
			p, err := store.GetProject(ctx, projectID, currentUser().ID)
			if err != nil {
				return fmt.Errorf("failed to load project: %w", err)
			}
			if pack.Language != "" && !strings.EqualFold(pack.Language, p.Language) {
				warnColor.Printf("⚠ Pack is for %q but project #%d is %q\n", pack.Language, p.ID, p.Language)
			}
			for _, rule := range pack.Guidelines {
				if err := store.AddGuideline(ctx, &core.Guideline{RuleText: rule, ProjectID: p.ID}); err != nil {
					return fmt.Errorf("failed to add guideline %q: %w", rule, err)
				}
			}
			successColor.Printf("✓ Imported %d guidelines into project #%d\n", len(pack.Guidelines), p.ID)
			return nil
		})
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	guidelineCmd.AddCommand(guidelineAddCmd, guidelineListCmd, guidelineImportCmd)
	rootCmd.AddCommand(guidelineCmd)
}
