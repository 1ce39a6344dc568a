package cmd

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/tgc"
)

const webhookPath = "/telegram/webhook"

func NewSetWebhook() *cobra.Command {
	var cfg config.WebhookCmdConfig
	cmd := &cobra.Command{
		Use:   "set-webhook",
		Short: "Point the bot's webhook at this server",
		RunE: func(cmd *cobra.Command, args []string) error {
			lg := setupLogger(&cfg.Log)
			defer lg.Sync()

			if cfg.Server.BaseURL == "" {
				return errors.New("server-base-url is required to register the webhook")
			}
			client, err := tgc.New(&cfg.TG)
			if err != nil {
				return err
			}
			url := strings.TrimSuffix(cfg.Server.BaseURL, "/") + webhookPath
			if err := client.SetWebhook(cmd.Context(), url); err != nil {
				return errors.Wrap(err, "set webhook")
			}
			lg.Infof("webhook set to %s", url)
			return nil
		},
	}
	newCommandConfig(cmd, &cfg)
	return cmd
}
