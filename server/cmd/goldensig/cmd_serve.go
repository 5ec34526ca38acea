package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goldensig/goldensig/server/internal/api"
	"github.com/goldensig/goldensig/server/internal/auth"
	"github.com/goldensig/goldensig/server/internal/config"
	"github.com/goldensig/goldensig/server/internal/dataset"
	"github.com/goldensig/goldensig/server/internal/ledger"
	"github.com/goldensig/goldensig/server/internal/notify"
	"github.com/goldensig/goldensig/server/internal/session"
	"github.com/goldensig/goldensig/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(debug *bool) *cobra.Command {
	var (
		configPath  string
		datasetPath string
		envFile     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and session stream",
		Long: `Start the HTTP API and session stream.

The dataset is loaded once at startup and scored. Every client session starts
from the highest scoring batch. With dataset.watch enabled, edits to the
dataset file are picked up for sessions created afterwards; a file that fails
to load is logged and the previous dataset stays active.

Without --config the built-in defaults are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}

			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			if datasetPath != "" {
				cfg.Dataset.Path = datasetPath
			}

			level := cfg.Log.SlogLevel()
			if *debug {
				level = slog.LevelDebug
			}
			setupLogger(os.Stdout, cfg.Log.Format, level)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config.yaml")
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Dataset file, overrides dataset.path")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the config")

	return cmd
}

// serve wires the components and runs until ctx is cancelled or one of them
// fails.
func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("goldensig starting",
		"version", version,
		"http_port", cfg.Server.HTTPPort,
		"dataset", cfg.Dataset.Path,
		"auth_mode", cfg.Server.Auth.Mode,
		"ledger", cfg.Ledger.Backend,
		"session_ttl", cfg.Session.TTL,
	)

	opts := dataset.Options{Sheet: cfg.Dataset.Sheet}
	ds, err := dataset.Load(cfg.Dataset.Path, opts)
	if err != nil {
		return err
	}

	st := session.New(ds, cfg.Session.TTL)

	ldg, err := ledger.Open(ctx, ledger.Backend(cfg.Ledger.Backend), cfg.Ledger.DSN())
	if err != nil {
		return err
	}
	defer ldg.Close()

	notifier := notify.New(cfg.Notify.Webhooks)
	defer notifier.Wait()

	hub := ws.New(st, cfg.Stream.Interval)

	st.OnApprove(ldg.Approved)
	st.OnApprove(notifier.Approved)
	st.OnApprove(hub.Approved)

	handler := api.New(api.Options{
		Sessions:       st,
		Ledger:         ldg,
		Hub:            hub,
		Auth:           auth.APIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key()),
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("goldensig shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		st.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if cfg.Dataset.Watch {
		g.Go(func() error {
			return config.Watch(gctx, cfg.Dataset.Path, func(path string) error {
				next, err := dataset.Load(path, opts)
				if err != nil {
					return err
				}
				st.SetDataset(next)
				return nil
			})
		})
	}

	return g.Wait()
}
