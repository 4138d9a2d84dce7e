package main

import (
	"github.com/spf13/cobra"

	"github.com/deskline/queue-api/internal/infrastructure/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, db, log, err := environment(cmd)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(cmd.Context(), db, log); err != nil {
		return err
	}
	cmd.Println("migrations applied")
	return nil
}
