package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/patdx/fly-watch/internal/config"
	"github.com/patdx/fly-watch/internal/flyapi"
	"github.com/patdx/fly-watch/internal/notify"
	"github.com/patdx/fly-watch/internal/store"
	"github.com/patdx/fly-watch/internal/store/postgres"
	"github.com/patdx/fly-watch/internal/store/sqlite"
	"github.com/patdx/fly-watch/internal/ui"
)

var (
	jsonOutput  bool
	profileName string
)

var rootCmd = &cobra.Command{
	Use:   "flywatch <command>",
	Short: "Watch Fly.io machines and alert on billing-relevant state changes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		return nil
	},
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// openStore picks the backend: postgres when a database URL is configured,
// otherwise the embedded sqlite file.
func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		return postgres.New(cfg.DatabaseURL)
	}
	return sqlite.Open(cfg.SQLitePath)
}

// buildNotifier picks the channel from whatever is configured, after
// applying the active profile. Discord wins when both are set; with
// neither, alerts go to the log.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	if err := applyProfile(cfg, profileName); err != nil {
		return nil, err
	}
	switch {
	case cfg.DiscordWebhookURL != "":
		return notify.NewDiscord(cfg.DiscordWebhookURL), nil
	case cfg.TelegramBotToken != "":
		return notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID), nil
	}
	logger.Info("no notifier channel configured, alerts go to the log")
	return notify.NewLog(logger), nil
}

func newInventory(cfg *config.Config) *flyapi.Client {
	return flyapi.New(cfg.FlyAPIURL, cfg.FlyAPIToken, cfg.FlyOrgSlug)
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "notifier profile to use (see 'flywatch profile')")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
