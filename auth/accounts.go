package auth

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/cyberinferno/gamenet/protocol"
)

// CredentialChecker resolves credentials to a player.
type CredentialChecker interface {
	// Check returns the player owning the credentials, ErrInvalidCredentials
	// when they do not match, or ErrBanned for a banned account.
	Check(ctx context.Context, c protocol.Credentials) (protocol.PlayerID, error)
}

// Account is one entry of StaticAccounts.
type Account struct {
	Login    string
	Password string
	Player   protocol.PlayerID
	Banned   bool
}

// StaticAccounts is a CredentialChecker over a fixed list of accounts,
// usually loaded from configuration.
type StaticAccounts struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewStaticAccounts creates a checker holding accounts. A later account
// with the same login replaces an earlier one.
func NewStaticAccounts(accounts ...Account) *StaticAccounts {
	s := &StaticAccounts{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		s.accounts[a.Login] = a
	}
	return s
}

// Set adds or replaces an account.
func (s *StaticAccounts) Set(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Login] = a
}

// Check implements CredentialChecker.
func (s *StaticAccounts) Check(_ context.Context, c protocol.Credentials) (protocol.PlayerID, error) {
	s.mu.RLock()
	a, ok := s.accounts[c.Login]
	s.mu.RUnlock()

	if !ok || subtle.ConstantTimeCompare([]byte(a.Password), []byte(c.Password)) != 1 {
		return protocol.NoPlayer, ErrInvalidCredentials
	}
	if a.Banned {
		return a.Player, ErrBanned
	}

	return a.Player, nil
}
