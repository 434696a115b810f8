package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/patdx/fly-watch/internal/archive"
	"github.com/patdx/fly-watch/internal/config"
	"github.com/patdx/fly-watch/internal/events"
	"github.com/patdx/fly-watch/internal/monitor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run reconciliation passes on an interval, with a health endpoint",
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

		// Health endpoint.
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Ledger archive scheduler, when an S3 destination is configured.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 && cfg.ArchiveS3Bucket != "" {
			dest, err := archive.NewS3Destination(
				context.Background(),
				cfg.ArchiveS3Bucket,
				cfg.ArchiveS3Prefix,
				cfg.ArchiveS3Region,
				cfg.ArchiveS3Endpoint,
			)
			if err != nil {
				logger.Error("failed to create S3 archive destination", "err", err)
			} else {
				scheduler = archive.NewScheduler(st, []archive.Destination{dest}, cfg.ArchiveInterval, logger)
				scheduler.Start()
				logger.Info("ledger archive enabled", "bucket", cfg.ArchiveS3Bucket, "prefix", cfg.ArchiveS3Prefix)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("watch loop started", "interval", cfg.CheckInterval)

		// One pass immediately, then on each tick. Passes never overlap:
		// the loop is strictly sequential.
		ticker := time.NewTicker(cfg.CheckInterval)
		defer ticker.Stop()
		for {
			if err := mon.Run(ctx); err != nil {
				logger.Error("machine check failed", "err", err)
			}
			select {
			case <-ctx.Done():
				logger.Info("shutting down gracefully")
				if scheduler != nil {
					scheduler.Stop()
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			case <-ticker.C:
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
