package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "paperlink",
		Short:        "Share Telegram files through expiring, download-limited links",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.AddCommand(NewRun(), NewMigrate(), NewSetWebhook(), NewVersion())
	return cmd
}

// newCommandConfig wires a loader to cmd so the config is loaded and
// validated before the command runs.
func newCommandConfig(cmd *cobra.Command, cfg interface{}) {
	loader := config.NewConfigLoader()
	if err := loader.RegisterFlags(cmd.Flags(), "", cfg, false); err != nil {
		panic(err)
	}
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := loader.Load(cmd, cfg); err != nil {
			return err
		}
		return loader.Validate()
	}
}

func setupLogger(conf *config.LoggingConfig) *zap.SugaredLogger {
	lvl, err := zapcore.ParseLevel(conf.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	logging.SetConfig(&logging.Config{
		Level:    lvl,
		FilePath: conf.File,
	})
	return logging.DefaultLogger().Sugar()
}
