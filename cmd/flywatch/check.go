package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/patdx/fly-watch/internal/config"
	"github.com/patdx/fly-watch/internal/events"
	"github.com/patdx/fly-watch/internal/monitor"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one reconciliation pass over the fleet and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		notifier, err := buildNotifier(cfg, logger)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			defer pub.Close()
			publisher = pub
			logger.Info("transition events enabled", "nats_url", cfg.NATSURL)
		}

		mon := monitor.New(newInventory(cfg), notifier, st, publisher, logger)
		return mon.Run(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
