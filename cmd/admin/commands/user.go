package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/auth"
	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/models"
)

// NewCreateUserCmd creates the create-user command.
func NewCreateUserCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		Long:  "Create a user account directly in the database, bypassing the registration endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			name = strings.TrimSpace(name)
			email = strings.TrimSpace(email)
			if name == "" || email == "" {
				return fmt.Errorf("--name and --email are required")
			}
			if len(password) < auth.MinPasswordLength {
				return fmt.Errorf("--password must be at least %d characters", auth.MinPasswordLength)
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

			hashed, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			user := &models.User{
				ID:             uuid.New(),
				Name:           name,
				Email:          email,
				HashedPassword: hashed,
			}
			repo := database.NewUserRepository(db)
			if err := repo.Create(context.Background(), user); err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Printf("Created user %s (%s)\n", user.ID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	return cmd
}
