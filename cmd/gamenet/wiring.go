package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/gamenet/auth"
	"github.com/cyberinferno/gamenet/client"
	"github.com/cyberinferno/gamenet/config"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/metrics"
	"github.com/cyberinferno/gamenet/protocol"
	"github.com/cyberinferno/gamenet/session"
)

func newFactory() (*protocol.Factory, error) {
	f, err := protocol.NewFactory(protocol.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("build protocol factory: %w", err)
	}
	return f, nil
}

// newAuthority builds the authority described by cfg. The returned func
// releases the token store.
func newAuthority(ctx context.Context, cfg config.Authority, log logger.Logger, m *metrics.Metrics) (*auth.Authority, func() error, error) {
	var (
		store   auth.TokenStore
		release = func() error { return nil }
	)

	switch cfg.Store {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		store = auth.NewRedisStore(rdb)
		release = rdb.Close
	default:
		store = auth.NewMemoryStore(time.Minute)
	}

	accounts := make([]auth.Account, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accounts = append(accounts, auth.Account{
			Login:    a.Login,
			Password: a.Password,
			Player:   protocol.PlayerID(a.Player),
			Banned:   a.Banned,
		})
	}

	opts := []auth.AuthorityOption{
		auth.WithAuthorityLogger(log),
		auth.WithAuthorityMetrics(m),
		auth.WithTokenTTL(cfg.TokenTTL.Std()),
	}
	if cfg.MaxFailures > 0 {
		opts = append(opts, auth.WithMaxFailures(cfg.MaxFailures, cfg.FailureWindow.Std()))
	}

	log.Info("authority ready",
		logger.Field{Key: "store", Value: cfg.Store},
		logger.Field{Key: "accounts", Value: len(accounts)},
	)

	return auth.NewAuthority(store, auth.NewStaticAccounts(accounts...), opts...), release, nil
}

func retryStrategy(maxRetries int, interval time.Duration) *client.RetryStrategy {
	if maxRetries <= 0 {
		return client.RetryEvery(interval)
	}
	return client.RetryMaxEvery(maxRetries, interval)
}

// versionAnnouncer sends the server version to every session once it is
// authenticated.
type versionAnnouncer struct {
	factory *protocol.Factory
	version protocol.Version
	now     func() time.Time
	log     logger.Logger
}

func newVersionAnnouncer(f *protocol.Factory, v protocol.Version, log logger.Logger) *versionAnnouncer {
	return &versionAnnouncer{factory: f, version: v, now: time.Now, log: log}
}

func (a *versionAnnouncer) MessageReceived(s session.Session, frame string) error {
	a.log.Debug("game frame", logger.Field{Key: "player", Value: s.Player()}, logger.Field{Key: "frame", Value: frame})
	return nil
}

func (a *versionAnnouncer) ClientAuthenticated(s session.Session) {
	msg := a.factory.VersionResponse(protocol.VersionCheck{
		Version:    a.version,
		ServerTime: a.now().UnixMilli(),
	})
	if err := s.SendMessage(msg); err != nil {
		a.log.Warn("version response failed", logger.Field{Key: "player", Value: s.Player()}, logger.Err(err))
	}
}

func (a *versionAnnouncer) SessionClosed(s session.Session) {
	a.log.Debug("player left", logger.Field{Key: "player", Value: s.Player()})
}
