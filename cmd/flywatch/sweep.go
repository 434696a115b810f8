package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patdx/fly-watch/internal/config"
	"github.com/patdx/fly-watch/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Retry delivery for events that were recorded but never notified",
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

		attempted, delivered, err := sweep.New(st, notifier, logger).Sweep(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("swept %d unnotified events, delivered %d\n", attempted, delivered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
