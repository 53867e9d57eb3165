// Command mintoonsctl is the operator tool for backups, competitions,
// quota resets and the moderation word list.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mintoons/internal/config"
	"mintoons/internal/database"
	"mintoons/internal/logger"
)

var version = "dev"

var (
	verbose bool
	cfg     *config.Config
	log     *zap.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "mintoonsctl",
	Short:        "Operate a Mintoons backend",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		log, err = logger.New(logger.Config{Level: level, Encoding: "console"})
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(competitionCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(moderationCmd)
}

// openDB connects and brings the schema up to date
func openDB(ctx context.Context) (*database.DB, error) {
	db, err := database.Open(cfg.DatabaseType, cfg.DatabasePath, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.RunMigrations(ctx, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
