package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/cyberinferno/gamenet/idgenerator"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/metrics"
	"github.com/cyberinferno/gamenet/protocol"
)

// Authority issues tokens for credentials and verifies the tokens game
// servers forward to it.
type Authority struct {
	store       TokenStore
	checker     CredentialChecker
	log         logger.Logger
	metrics     *metrics.Metrics
	ttl         time.Duration
	maxFailures int
	failures    *cache.Cache
}

// AuthorityOption configures an Authority.
type AuthorityOption func(*Authority)

// WithAuthorityLogger sets the logger.
func WithAuthorityLogger(l logger.Logger) AuthorityOption {
	return func(a *Authority) {
		a.log = l
	}
}

// WithAuthorityMetrics sets the collectors.
func WithAuthorityMetrics(m *metrics.Metrics) AuthorityOption {
	return func(a *Authority) {
		a.metrics = m
	}
}

// WithTokenTTL sets the lifetime of issued tokens. Zero means tokens live
// until revoked.
func WithTokenTTL(ttl time.Duration) AuthorityOption {
	return func(a *Authority) {
		a.ttl = ttl
	}
}

// WithMaxFailures locks a login out after max failed attempts within
// window. Locked out logins get a TooManyFailures token. Zero disables the
// lockout.
func WithMaxFailures(max int, window time.Duration) AuthorityOption {
	return func(a *Authority) {
		a.maxFailures = max
		a.failures = cache.New(window, window)
	}
}

// NewAuthority creates an Authority.
//
// Parameters:
//   - store: Where issued tokens live
//   - checker: Resolves credentials to players
//   - opts: Optional configuration
//
// Returns:
//   - The authority
func NewAuthority(store TokenStore, checker CredentialChecker, opts ...AuthorityOption) *Authority {
	a := &Authority{
		store:   store,
		checker: checker,
		log:     logger.NewNopLogger(),
		ttl:     time.Hour,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With(logger.Field{Key: "component", Value: "authority"})

	return a
}

// Authenticate checks credentials and returns the player's token. A valid
// login gets an Authenticated token, reused while it is live. Failures are
// answered with a token whose status says why, never with an error; errors
// are reserved for store or checker failures.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - c: The credentials to check
//
// Returns:
//   - The token to send back to the client
//   - An error if the check could not be performed
func (a *Authority) Authenticate(ctx context.Context, c protocol.Credentials) (protocol.Token, error) {
	if a.lockedOut(c.Login) {
		a.log.Warn("login locked out", logger.Field{Key: "login", Value: c.Login})
		return a.answer(protocol.Token{Player: protocol.NoPlayer, Status: protocol.TokenTooManyFailures}), nil
	}

	player, err := a.checker.Check(ctx, c)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		a.recordFailure(c.Login)
		a.log.Info("invalid credentials", logger.Field{Key: "login", Value: c.Login})
		return a.answer(protocol.Token{Player: protocol.NoPlayer, Status: protocol.TokenRejected}), nil
	case errors.Is(err, ErrBanned):
		a.log.Info("banned account refused", logger.Field{Key: "player", Value: player})
		return a.answer(protocol.Token{Player: player, Status: protocol.TokenBanned}), nil
	case err != nil:
		return protocol.Token{}, fmt.Errorf("check credentials: %w", err)
	}

	t, err := a.store.Issue(ctx, player, a.ttl, func(context.Context) (protocol.Token, error) {
		key, err := idgenerator.RandomKey()
		if err != nil {
			return protocol.Token{}, err
		}
		return protocol.Token{Player: player, Key: key, Status: protocol.TokenAuthenticated}, nil
	})
	if err != nil {
		return protocol.Token{}, err
	}

	a.clearFailures(c.Login)
	a.log.Info("token issued", logger.Field{Key: "player", Value: player})
	return a.answer(t), nil
}

// Verify checks a token forwarded by a game server against the live token
// of its player.
//
// Returns:
//   - The verification to send back
//   - An error if the store failed
func (a *Authority) Verify(ctx context.Context, t protocol.Token) (protocol.TokenVerification, error) {
	live, ok, err := a.store.Lookup(ctx, t.Player)
	if err != nil {
		return protocol.TokenVerification{}, fmt.Errorf("lookup token: %w", err)
	}

	v := protocol.TokenVerification{
		Player:        t.Player,
		Authenticated: ok && live.IsAuthenticated() && live.Key == t.Key,
	}
	if !v.Authenticated {
		a.log.Info("token verification refused", logger.Field{Key: "player", Value: t.Player})
	}

	return v, nil
}

// Revoke drops the live token of player, so later verifications fail.
func (a *Authority) Revoke(ctx context.Context, player protocol.PlayerID) error {
	return a.store.Revoke(ctx, player)
}

func (a *Authority) answer(t protocol.Token) protocol.Token {
	a.metrics.TokenIssued(t.Status.String())
	return t
}

func (a *Authority) lockedOut(login string) bool {
	if a.failures == nil || a.maxFailures <= 0 {
		return false
	}

	n, ok := a.failures.Get(login)
	return ok && n.(int) >= a.maxFailures
}

func (a *Authority) recordFailure(login string) {
	if a.failures == nil {
		return
	}

	if err := a.failures.Add(login, 1, cache.DefaultExpiration); err != nil {
		_, _ = a.failures.IncrementInt(login, 1)
	}
}

func (a *Authority) clearFailures(login string) {
	if a.failures != nil {
		a.failures.Delete(login)
	}
}
