package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskline/queue-api/internal/domain/intake"
	"github.com/deskline/queue-api/internal/infrastructure/database"
	"github.com/deskline/queue-api/internal/infrastructure/notifier"
	"github.com/deskline/queue-api/internal/infrastructure/repository/agentrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/conversationrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/messagerepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/notifying"
	"github.com/deskline/queue-api/internal/infrastructure/repository/organizationrepo"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load organizations, agents and conversations from a YAML file",
	Long: `Load fixtures into the database. Writes go through the configured
change notifier so running dashboards refresh.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringP("file", "f", "fixtures.yaml", "Fixture file to load")
	seedCmd.Flags().Bool("migrate", false, "Apply migrations before seeding")
}

func runSeed(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fixtures: %w", err)
	}
	defer file.Close()

	fixtures, err := ParseFixtures(file)
	if err != nil {
		return err
	}

	cfg, db, log, err := environment(cmd)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx := cmd.Context()
	if runMigrations, _ := cmd.Flags().GetBool("migrate"); runMigrations {
		if err := database.Migrate(ctx, db, log); err != nil {
			return err
		}
	}

	changes, closer, err := notifier.New(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	conversations := notifying.NewConversationRepository(conversationrepo.NewGormRepository(db), changes, log)
	agents := notifying.NewAgentRepository(agentrepo.NewGormRepository(db), changes, log)
	messages := notifying.NewMessageRepository(messagerepo.NewGormRepository(db), changes, log)

	seeder := NewSeeder(organizationrepo.NewGormRepository(db), agents, conversations, intake.NewService(conversations, messages, log))
	summary, err := seeder.Seed(ctx, fixtures, time.Now().UTC())
	if err != nil {
		return err
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetIndent("", "  ")
	return out.Encode(summary)
}
