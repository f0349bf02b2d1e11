package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/cmd/admin/commands"
)

func main() {
	_ = godotenv.Load()

	var rootCmd = &cobra.Command{
		Use:   "taskpilot-admin",
		Short: "Administration tool for the TaskPilot API",
		Long:  "CLI tool for account management, token issuance and database migrations",
	}

	rootCmd.AddCommand(commands.NewCreateUserCmd())
	rootCmd.AddCommand(commands.NewTokenCmd())
	rootCmd.AddCommand(commands.NewMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
