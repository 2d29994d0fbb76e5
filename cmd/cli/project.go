package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/storage"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, list, show and delete projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name] [language]",
	Short: "Create a project",
	Example: `  codezen-cli project create backend go
  codezen-cli --user 2 project create scripts python`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		language := strings.ToLower(strings.TrimSpace(args[1]))
		if name == "" || language == "" {
			return fmt.Errorf("name and language must not be empty")
		}
		return withStore(func(ctx context.Context, store storage.Store) error {
			p := &core.Project{Name: name, Language: language, OwnerID: currentUser().ID}
			if err := store.CreateProject(ctx, p); err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}
			successColor.Printf("✓ Created project #%d\n", p.ID)
			printProject(p)
			return nil
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your projects",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withStore(func(ctx context.Context, store storage.Store) error {
			projects, err := store.ListProjects(ctx, currentUser().ID)
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}
			if len(projects) == 0 {
				dimColor.Println("No projects yet.")
				return nil
			}
			for _, p := range projects {
				printProject(p)
			}
			return nil
		})
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show a project with its guidelines",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		projectID, err := parseID("project id", args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, store storage.Store) error {
			p, err := store.GetProject(ctx, projectID, currentUser().ID)
			if err != nil {
				return fmt.Errorf("failed to load project: %w", err)
			}
			guidelines, err := store.ListGuidelines(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("failed to list guidelines: %w", err)
			}
			printProject(p)
			printGuidelines(guidelines)
			return nil
		})
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete [project-id]",
	Short: "Delete a project with all its guidelines, reviews and comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		projectID, err := parseID("project id", args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, store storage.Store) error {
			if err := store.DeleteProject(ctx, projectID, currentUser().ID); err != nil {
				return fmt.Errorf("failed to delete project: %w", err)
			}
			successColor.Printf("✓ Deleted project #%d\n", projectID)
			return nil
		})
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectShowCmd, projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}
