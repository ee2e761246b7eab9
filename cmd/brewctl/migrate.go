package main

import (
	"fmt"

	"github.com/dhirajc963/timebrew.news/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()
			if err := db.Migrate(e.db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables (%s)\n", len(db.Models()), e.cfg.DBDriver)
			return nil
		},
	}
}
