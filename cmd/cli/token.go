package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/codezen/internal/server/middleware"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the --user identity",
	Long: `Issue an HS256 bearer token signed with auth.jwt_secret. Useful for local
testing of the HTTP API:

  curl -H "Authorization: Bearer $(codezen-cli --user 1 token)" localhost:8080/api/v1/projects`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not set\n\nTip: Set CODEZEN_AUTH_JWT_SECRET")
		}
		token, err := middleware.IssueToken(cfg.Auth.JWTSecret, *currentUser(), tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
