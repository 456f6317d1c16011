// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/recall/internal/server"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the memory and evaluation HTTP API",
		Long:  "Load configuration, build the memory store and judge, and serve the HTTP API until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	cmd.Flags().Float64("rate-limit", 0, "requests per second allowed per client IP, 0 disables")
	cmd.Flags().Int("rate-burst", 20, "burst size for --rate-limit")

	return cmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	if err := v.BindPFlag("server.listen", cmd.Flags().Lookup("listen")); err != nil {
		return recallerr.Errorf(recallerr.CodeCLISetupFailure, "binding listen flag: %w", err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	app, err := Wire(cfg, WireOptions{Memory: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("closing subsystems", "error", err)
		}
	}()

	rps, _ := cmd.Flags().GetFloat64("rate-limit")
	burst, _ := cmd.Flags().GetInt("rate-burst")

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   server.RateLimitConfig{RequestsPerSecond: rps, Burst: burst},
		Version:     version,
	})
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	svc := &server.Services{Memory: app.Memory}
	// A typed nil must not reach the interface fields.
	if app.Judge != nil {
		svc.Retrieval = app.Scorer
		svc.Judge = app.Judge
	}
	srv.RegisterServices(svc)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting recall",
		"listen", cfg.Server.Listen,
		"index", cfg.Memory.Index,
		"embedding", cfg.Embedding.Provider,
		"judge_enabled", app.Judge != nil,
	)
	return srv.Start(ctx)
}
