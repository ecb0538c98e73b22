package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cyberinferno/gamenet/auth"
	"github.com/cyberinferno/gamenet/client"
	"github.com/cyberinferno/gamenet/config"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/metrics"
	"github.com/cyberinferno/gamenet/session"
	"github.com/cyberinferno/gamenet/tcpclient"
	"github.com/cyberinferno/gamenet/tcpserver"
	"github.com/cyberinferno/gamenet/wsserver"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a game server",
		Long: `Run a game server accepting players over TCP and WebSocket.

With auth_mode "local" the server also hosts the authority: clients get
their tokens from authority.listen and tokens are verified in process.
With auth_mode "remote" tokens are forwarded to the authority at
authority_addr.

Examples:
  gamenet serve
  gamenet serve --config server.toml
  GAMENET_AUTH_MODE=remote gamenet serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}
}

// gameServer holds everything serve starts, in the order it is stopped.
type gameServer struct {
	cfg      config.Server
	log      logger.Logger
	registry *prometheus.Registry
	manager  *session.Manager

	tcp       *tcpserver.Server
	authority *tcpserver.Server
	ws        *wsserver.Server
	http      *http.Server
	remote    *auth.RemoteAuthenticator
	engine    *client.Engine
	release   func() error
}

func runServe(ctx context.Context, cfg config.Server) error {
	g, err := newGameServer(ctx, cfg)
	if err != nil {
		return err
	}
	if err := g.start(); err != nil {
		g.stop()
		return err
	}

	ticker := time.NewTicker(cfg.Tick.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.stop()
			return nil
		case <-ticker.C:
			if g.remote != nil {
				g.remote.Update()
			}
		}
	}
}

func newGameServer(ctx context.Context, cfg config.Server) (*gameServer, error) {
	log := cfg.Log.NewLogger("gamenet-server")

	v, err := config.ParseVersion(cfg.Version)
	if err != nil {
		return nil, err
	}

	f, err := newFactory()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(metrics.WithRegistry(registry), metrics.WithSubsystem("server"))

	g := &gameServer{
		cfg:      cfg,
		log:      log,
		registry: registry,
		release:  func() error { return nil },
	}

	g.manager = session.NewManager(f, session.WithLogger(log), session.WithMetrics(m))
	g.manager.AddListener(newVersionAnnouncer(f, v, log))

	switch cfg.AuthMode {
	case config.AuthRemote:
		tc := tcpclient.New(tcpclient.DefaultConfig(), log)
		g.engine = client.NewEngine(tc,
			client.WithLogger(log.With(logger.Field{Key: "peer", Value: "authority"})),
			client.WithRetryStrategy(retryStrategy(cfg.MaxRetries, cfg.RetryInterval.Std())),
			client.WithMetrics(m),
		)
		g.remote = auth.NewRemoteAuthenticator(g.engine, f, g.manager, log)
		g.manager.SetAuthenticator(g.remote)

	default:
		authority, release, err := newAuthority(ctx, cfg.Authority, log, m)
		if err != nil {
			return nil, err
		}
		g.release = release
		g.manager.SetAuthenticator(auth.NewLocalAuthenticator(authority, g.manager, log, cfg.Authority.Timeout.Std()))

		g.authority = tcpserver.NewServer("authority", cfg.Authority.Listen,
			auth.NewServer(authority, f, log, m, cfg.Authority.Timeout.Std()), log)
	}

	g.tcp = tcpserver.NewServer("game", cfg.TCPAddr, g.manager, log)
	g.tcp.ReadTimeout = cfg.ReadTimeout.Std()
	g.tcp.WriteTimeout = cfg.WriteTimeout.Std()
	g.tcp.MaxFrameSize = cfg.MaxFrameSize

	if cfg.HTTPAddr != "" {
		wsCfg := wsserver.DefaultConfig()
		wsCfg.ReadTimeout = cfg.ReadTimeout.Std()
		wsCfg.WriteTimeout = cfg.WriteTimeout.Std()
		wsCfg.MaxMessageSize = int64(cfg.MaxFrameSize)
		wsCfg.CheckOrigin = func(*http.Request) bool { return true }
		g.ws = wsserver.New(g.manager, wsCfg, log)

		g.http = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           g.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return g, nil
}

func (g *gameServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Handle("/ws", g.ws)
	r.Handle("/metrics", promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"players":     g.manager.PlayerCount(),
			"connections": g.manager.ConnectionCount(),
		})
	})
	return r
}

func (g *gameServer) start() error {
	if g.authority != nil {
		if err := g.authority.Start(); err != nil {
			return err
		}
	}

	if err := g.tcp.Start(); err != nil {
		return err
	}

	if g.http != nil {
		go func() {
			g.log.Info("http listening", logger.Field{Key: "addr", Value: g.http.Addr})
			if err := g.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.log.Error("http server failed", logger.Err(err))
			}
		}()
	}

	if g.engine != nil {
		host, port, err := config.SplitAddr(g.cfg.AuthorityAddr)
		if err != nil {
			return fmt.Errorf("authority_addr: %w", err)
		}
		g.engine.Connect(host, port)
	}

	return nil
}

func (g *gameServer) stop() {
	g.log.Info("shutting down")

	if g.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = g.http.Shutdown(ctx)
		cancel()
		g.ws.Shutdown()
	}

	g.tcp.Stop()
	g.manager.DisconnectAll()

	if g.authority != nil {
		g.authority.Stop()
	}
	if g.engine != nil {
		_ = g.engine.Close()
	}
	if err := g.release(); err != nil {
		g.log.Warn("token store close failed", logger.Err(err))
	}
}
