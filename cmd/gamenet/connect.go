package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/gamenet/client"
	"github.com/cyberinferno/gamenet/config"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/protocol"
	"github.com/cyberinferno/gamenet/tcpclient"
)

var errNoAnswer = errors.New("no answer")

func connectCmd(configPath *string) *cobra.Command {
	var login, password string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Log in and join a game server",
		Long: `Authenticate against the authority, join the game server with the
issued token and print the version the server announces.

Examples:
  gamenet connect --login alice --password wonderland
  GAMENET_SERVER_ADDR=game.example.com:7777 gamenet connect -l alice -p secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(*configPath)
			if err != nil {
				return err
			}
			if login != "" {
				cfg.Login = login
			}
			if password != "" {
				cfg.Password = password
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			check, err := runConnect(ctx, cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "server version %s, server time %s\n",
				check.Version, check.Time().UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVarP(&login, "login", "l", "", "Account login")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")

	return cmd
}

func runConnect(ctx context.Context, cfg config.Client) (protocol.VersionCheck, error) {
	log := cfg.Log.NewLogger("gamenet-client")

	f, err := newFactory()
	if err != nil {
		return protocol.VersionCheck{}, err
	}

	raw, err := exchange(ctx, cfg, cfg.AuthorityAddr, log,
		f.AuthenticationRequest(protocol.Credentials{Login: cfg.Login, Password: cfg.Password}),
		protocol.CmdAuthenticationResponse)
	if err != nil {
		return protocol.VersionCheck{}, fmt.Errorf("authenticate: %w", err)
	}

	token, err := f.ParseAuthenticationResponse(raw)
	if err != nil {
		return protocol.VersionCheck{}, err
	}
	if !token.IsAuthenticated() {
		return protocol.VersionCheck{}, fmt.Errorf("authentication refused: %s", token.Status)
	}
	log.Info("token issued", logger.Field{Key: "player", Value: token.Player})

	raw, err = exchange(ctx, cfg, cfg.ServerAddr, log,
		f.ConnectionRequest(token),
		protocol.CmdVersionResponse)
	if err != nil {
		return protocol.VersionCheck{}, fmt.Errorf("join game server: %w", err)
	}

	return f.ParseVersionResponse(raw)
}

// exchange connects to addr, sends request once connected and waits for
// the first frame carrying expect. The engine is driven at the configured
// tick rate and reconnects per the configured retry strategy.
func exchange(
	ctx context.Context,
	cfg config.Client,
	addr string,
	log logger.Logger,
	request protocol.Framer,
	expect protocol.Command,
) (string, error) {
	host, port, err := config.SplitAddr(addr)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout.Std())
	defer cancel()

	tcfg := tcpclient.DefaultConfig()
	tcfg.ConnectionTimeout = cfg.ConnectTimeout.Std()

	e := client.NewEngine(tcpclient.New(tcfg, log),
		client.WithLogger(log.With(logger.Field{Key: "peer", Value: addr})),
		client.WithRetryStrategy(retryStrategy(cfg.MaxRetries, cfg.RetryInterval.Std())),
	)
	defer e.Close()

	w := &waiter{engine: e, request: request, expect: expect, log: log}
	e.AddListener(w)
	e.Connect(host, port)

	ticker := time.NewTicker(cfg.Tick.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w from %s: %w", errNoAnswer, addr, ctx.Err())
		case <-ticker.C:
			e.Update()
			if w.answered {
				return w.answer, nil
			}
		}
	}
}

// waiter sends a request on connection and keeps the first matching
// answer. Parse runs on the goroutine calling Update.
type waiter struct {
	engine   *client.Engine
	request  protocol.Framer
	expect   protocol.Command
	log      logger.Logger
	answered bool
	answer   string
}

func (w *waiter) Parse(frame string) error {
	cmd, err := protocol.ExtractCommand(frame)
	if err != nil {
		return err
	}
	if cmd == w.expect && !w.answered {
		w.answered = true
		w.answer = frame
	}
	return nil
}

func (w *waiter) Connected() {
	if err := w.engine.SendMessage(w.request); err != nil {
		w.log.Error("request failed", logger.Err(err))
	}
}

func (w *waiter) ConnectionFailed() {}

func (w *waiter) ConnectionLost() {}
