package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sevigo/codezen/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Opening the database applies the embedded migrations.
		return withStore(func(context.Context, storage.Store) error {
			successColor.Printf("✓ Database schema is up to date (%s)\n", cfg.Database.Driver)
			return nil
		})
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(migrateCmd)
}
