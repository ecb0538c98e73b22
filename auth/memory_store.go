package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/cyberinferno/gamenet/protocol"
)

// MemoryStore is an in-process TokenStore. It uses go-cache for storage and
// expiry, and singleflight so concurrent Issue calls for one player run the
// issue function once.
type MemoryStore struct {
	cache *cache.Cache
	group singleflight.Group
}

// NewMemoryStore creates an empty MemoryStore.
//
// Parameters:
//   - cleanupInterval: Interval at which expired tokens are removed
//
// Returns:
//   - A new MemoryStore
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

// Issue implements TokenStore.
func (m *MemoryStore) Issue(
	ctx context.Context,
	player protocol.PlayerID,
	ttl time.Duration,
	issue IssueFunc,
) (protocol.Token, error) {
	key := tokenKey(player)

	if t, ok := m.get(key); ok {
		return t, nil
	}

	val, err, _ := m.group.Do(key, func() (any, error) {
		// Another caller may have stored it while we waited for the group.
		if t, ok := m.get(key); ok {
			return t, nil
		}

		t, err := issue(ctx)
		if err != nil {
			return protocol.Token{}, err
		}

		m.cache.Set(key, t, ttl)
		return t, nil
	})
	if err != nil {
		return protocol.Token{}, fmt.Errorf("issue token for player %d: %w", player, err)
	}

	t, ok := val.(protocol.Token)
	if !ok {
		return protocol.Token{}, fmt.Errorf("unexpected type in token store for key %s", key)
	}

	return t, nil
}

// Lookup implements TokenStore.
func (m *MemoryStore) Lookup(ctx context.Context, player protocol.PlayerID) (protocol.Token, bool, error) {
	select {
	case <-ctx.Done():
		return protocol.Token{}, false, ctx.Err()
	default:
	}

	t, ok := m.get(tokenKey(player))
	return t, ok, nil
}

// Revoke implements TokenStore.
func (m *MemoryStore) Revoke(ctx context.Context, player protocol.PlayerID) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.cache.Delete(tokenKey(player))
	return nil
}

// Count implements TokenStore.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	return m.cache.ItemCount(), nil
}

func (m *MemoryStore) get(key string) (protocol.Token, bool) {
	v, found := m.cache.Get(key)
	if !found {
		return protocol.Token{}, false
	}

	t, ok := v.(protocol.Token)
	return t, ok
}
