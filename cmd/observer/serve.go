package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/observer"
	"github.com/aretw0/observer/internal/script"
	httpAdapter "github.com/aretw0/observer/pkg/adapters/http"
	"github.com/aretw0/observer/pkg/adapters/memory"
	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/observability"
	"github.com/aretw0/observer/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the watcher registry and metrics over HTTP",
	Long: `Starts an HTTP server exposing /healthz, /info, /watchers and /metrics.
With --file, the scenario is replayed first and its watches stay installed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Metrics.Addr
		}
		file, _ := cmd.Flags().GetString("file")

		reg := prometheus.NewRegistry()
		metrics := observability.NewMetrics(reg)

		var obs *observer.Observer
		if file != "" {
			s, err := script.Load(file)
			if err != nil {
				return err
			}
			store, sessionOpts, err := openStore(cfg.Store, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := script.NewRunner(
				script.WithOutput(cmd.OutOrStdout()),
				script.WithLogger(logger),
				script.WithMetrics(metrics),
				script.WithDefaultWatcher(cfg.DefaultWatcher),
				script.WithSessionOptions(sessionOpts...),
			).Run(cmd.Context(), s, store)
			if err != nil {
				return err
			}
			obs = res.Observer
		} else {
			cat := catalog.New(catalog.WithLogger(logger))
			mgr := session.NewManager(memory.NewStore(), cat, session.WithLogger(logger))
			var err error
			obs, err = observer.New(cat, mgr, mgr,
				observer.WithLogger(logger),
				observer.WithMetrics(metrics),
				observer.WithDefaultWatcher(cfg.DefaultWatcher),
			)
			if err != nil {
				return err
			}
		}
		defer obs.UnwatchAll()

		srv := &http.Server{
			Addr:              addr,
			Handler:           httpAdapter.NewHandler(obs, httpAdapter.WithGatherer(reg), httpAdapter.WithLogger(logger)),
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting observer server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Shutting down", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("failed to close server: %w", err)
				}
			}
			logger.Info("Observer server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default metrics.addr from config)")
	serveCmd.Flags().StringP("file", "f", "", "Scenario to replay before serving")
}
