// Package main is a standalone CLI for running database schema
// migrations against the embedded sqlite file, independent of the
// server process.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nacos-mini/nacos-go/internal/config"
	"github.com/nacos-mini/nacos-go/internal/database"
	"github.com/nacos-mini/nacos-go/internal/storage/sqlite"
	"github.com/nacos-mini/nacos-go/pkg/logger"
)

func main() {
	var configPath string
	var dbPath string

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the embedded sqlite schema",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "Override the database path from config")

	resolve := func() (*config.Config, error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		if dbPath != "" {
			cfg.SQLite.Path = dbPath
		}
		return cfg, nil
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolve()
			if err != nil {
				return err
			}
			log := logger.NewLogger(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"})
			db, err := sqlite.Open(context.Background(), sqlite.Options{Path: cfg.SQLite.Path})
			if err != nil {
				return err
			}
			defer db.Close()
			return database.RunMigrations(db, log)
		},
	}

	downCmd := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the given number of migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				if _, err := fmt.Sscanf(args[0], "%d", &steps); err != nil {
					return fmt.Errorf("invalid step count %q: %w", args[0], err)
				}
			}
			cfg, err := resolve()
			if err != nil {
				return err
			}
			log := logger.NewLogger(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"})
			db, err := sqlite.Open(context.Background(), sqlite.Options{Path: cfg.SQLite.Path})
			if err != nil {
				return err
			}
			defer db.Close()
			return database.RunMigrationsDown(db, steps, log)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolve()
			if err != nil {
				return err
			}
			log := logger.NewLogger(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"})
			db, err := sqlite.Open(context.Background(), sqlite.Options{Path: cfg.SQLite.Path})
			if err != nil {
				return err
			}
			defer db.Close()
			return database.MigrationStatus(db, log)
		},
	}

	root.AddCommand(upCmd, downCmd, statusCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
