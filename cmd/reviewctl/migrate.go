package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/qs3c/slide_review_server/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the review_sessions and interaction_events tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			slog.Info("Schema migrated", "driver", a.cfg.Database.Driver)
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}
