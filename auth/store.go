// Package auth is the authentication authority of a gamenet deployment and
// the two ways a game server reaches it: in process, or over the network
// through a client engine.
package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cyberinferno/gamenet/protocol"
)

var (
	// ErrInvalidCredentials is returned by a CredentialChecker for an unknown
	// login or a wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrBanned is returned by a CredentialChecker for a banned account.
	ErrBanned = errors.New("auth: account banned")
)

// IssueFunc creates a token when a store holds none for a player.
type IssueFunc func(ctx context.Context) (protocol.Token, error)

// TokenStore keeps the live token of each player. Implementations must make
// concurrent Issue calls for the same player agree on a single token.
type TokenStore interface {
	// Issue returns the live token of player, or creates one with issue and
	// stores it for ttl.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - player: The player the token belongs to
	//   - ttl: Lifetime of a newly created token
	//   - issue: Function creating the token on a miss
	//
	// Returns:
	//   - The stored or created token
	//   - An error if the store or issue failed
	Issue(ctx context.Context, player protocol.PlayerID, ttl time.Duration, issue IssueFunc) (protocol.Token, error)

	// Lookup returns the live token of player and whether there is one.
	Lookup(ctx context.Context, player protocol.PlayerID) (protocol.Token, bool, error)

	// Revoke drops the token of player. Revoking a missing token is a no-op.
	Revoke(ctx context.Context, player protocol.PlayerID) error

	// Count returns the number of live tokens.
	Count(ctx context.Context) (int, error)
}

const keyPrefix = "gamenet:token:"

func tokenKey(player protocol.PlayerID) string {
	return keyPrefix + strconv.Itoa(int(player))
}
