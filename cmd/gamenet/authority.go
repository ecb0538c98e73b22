package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/gamenet/auth"
	"github.com/cyberinferno/gamenet/config"
	"github.com/cyberinferno/gamenet/metrics"
	"github.com/cyberinferno/gamenet/tcpserver"
)

func authorityCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "authority",
		Short: "Run the authentication authority",
		Long: `Run a standalone authentication authority. Clients send their
credentials to get a token; game servers in remote auth mode forward
tokens here to have them verified.

Accounts, token store and lockout come from the [authority] section.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runAuthority(ctx, cfg)
		},
	}
}

func runAuthority(ctx context.Context, cfg config.Server) error {
	log := cfg.Log.NewLogger("gamenet-authority")

	f, err := newFactory()
	if err != nil {
		return err
	}

	m := metrics.New(metrics.WithSubsystem("authority"))

	authority, release, err := newAuthority(ctx, cfg.Authority, log, m)
	if err != nil {
		return err
	}
	defer func() {
		_ = release()
	}()

	handler := auth.NewServer(authority, f, log, m, cfg.Authority.Timeout.Std())
	srv := tcpserver.NewServer("authority", cfg.Authority.Listen, handler, log)
	srv.ReadTimeout = cfg.ReadTimeout.Std()
	srv.WriteTimeout = cfg.WriteTimeout.Std()
	srv.MaxFrameSize = cfg.MaxFrameSize

	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	srv.Stop()
	handler.Shutdown()

	return nil
}
