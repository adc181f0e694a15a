package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bug_stomper/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema and seed default tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Database.Path, logger.Named("store"))
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := st.SeedTags(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("database migrated", zap.String("path", st.Path()), zap.Int("seeded_tags", n))
		return nil
	},
}
