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

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"github.com/patra-app/matchrank/config"
	"github.com/patra-app/matchrank/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "matchrank",
		Short:         "Candidate ranking and interaction service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})

	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token <user_id>",
		Short: "Print a signed API token for a user (development)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set")
			}
			tok, err := signToken([]byte(cfg.Auth.JWTSecret), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	root.AddCommand(tokenCmd)
	return root
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sup := suture.New("matchrank", suture.Spec{
		EventHook: func(e suture.Event) {
			logging.Warn().Str("event", e.String()).Msg("supervisor event")
		},
		Timeout: cfg.Server.ShutdownTimeout,
	})
	sup.Add(&httpService{
		server: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      a.handler(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	sup.Add(&corpusRefresher{target: a.ranker, interval: cfg.Embedding.RefreshInterval})

	logging.Info().Str("addr", cfg.Server.Addr).Str("store", cfg.Store.Driver).
		Str("embedding", cfg.Embedding.Provider).Bool("auth", cfg.Auth.Enabled).Msg("starting matchrank")

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("shutdown complete")
	return nil
}
