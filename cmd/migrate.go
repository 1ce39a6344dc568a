package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/database"
)

func NewMigrate() *cobra.Command {
	var cfg config.MigrateCmdConfig
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the postgres link store",
		RunE: func(cmd *cobra.Command, args []string) error {
			lg := setupLogger(&cfg.Log)
			defer lg.Sync()

			if cfg.Store.Driver != "postgres" {
				lg.Infof("store driver %q has no migrations", cfg.Store.Driver)
				return nil
			}
			pool, err := database.NewDatabase(cmd.Context(), &cfg.Store, lg)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := database.MigrateDB(cmd.Context(), pool, lg); err != nil {
				return err
			}
			lg.Info("migrations applied")
			return nil
		},
	}
	newCommandConfig(cmd, &cfg)
	return cmd
}
