package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civic-scout/scout/pkg/graph/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending graph store migrations without starting a run",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := store.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load database config: %w", err)
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
	if err := store.RunMigrations(dsn, cfg.Database); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	fmt.Println("migrations applied")
	return nil
}
