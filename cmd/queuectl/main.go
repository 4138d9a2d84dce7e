package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/config"
	"github.com/deskline/queue-api/internal/infrastructure/database"
	"github.com/deskline/queue-api/internal/infrastructure/logger"
)

var version = "0.1.0"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "queuectl",
	Short: "Operate the conversation queue from the command line",
	Long: `queuectl manages the queue database and inspects live queues.

Examples:
  queuectl migrate
  queuectl seed -f fixtures.yaml
  queuectl queue --org acme
  queuectl sla --org acme`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(slaCmd)

	rootCmd.PersistentFlags().String("db-driver", "", "Database driver override (postgres, sqlite)")
	rootCmd.PersistentFlags().String("database-url", "", "Database DSN override")
}

// environment loads the service configuration, applies flag overrides and
// opens the database.
func environment(cmd *cobra.Command) (*config.Config, *gorm.DB, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	if driver, _ := cmd.Flags().GetString("db-driver"); driver != "" {
		cfg.DBDriver = driver
	}
	if dsn, _ := cmd.Flags().GetString("database-url"); dsn != "" {
		cfg.DatabaseURL = dsn
	}

	log := logger.NewTo(cfg, os.Stderr)
	db, err := database.Connect(database.Config{
		Driver:          cfg.DBDriver,
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return nil, nil, log, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, log, nil
}
