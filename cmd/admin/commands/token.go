package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/auth"
	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/database"
)

// NewTokenCmd creates the token command, which issues a JWT for an
// existing user. Useful for smoke tests and API debugging.
func NewTokenCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return fmt.Errorf("--email is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer func() { _ = db.Close() }()

			repo := database.NewUserRepository(db)
			user, err := repo.GetByEmail(context.Background(), email)
			if err != nil {
				return fmt.Errorf("look up user: %w", err)
			}

			jwtManager := auth.NewJWTManager(cfg.AuthSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
			token, expiresAt, err := jwtManager.GenerateToken(user.ID, user.Email)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			fmt.Printf("Token for %s (expires %s):\n%s\n", user.Email, expiresAt.UTC().Format(time.RFC3339), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the user")
	return cmd
}
