package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/gamenet/codec"
	"github.com/cyberinferno/gamenet/protocol"
)

// RedisStore is a TokenStore shared by every authority instance pointing at
// the same Redis. Tokens are stored in their wire form, and SETNX makes
// concurrent issuers agree on the first token written.
type RedisStore struct {
	client *redis.Client
	codec  codec.Codec[protocol.Token]
}

// NewRedisStore creates a RedisStore.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := auth.NewRedisStore(client)
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		codec:  protocol.TokenCodec{},
	}
}

// Issue implements TokenStore.
func (r *RedisStore) Issue(
	ctx context.Context,
	player protocol.PlayerID,
	ttl time.Duration,
	issue IssueFunc,
) (protocol.Token, error) {
	key := tokenKey(player)

	t, ok, err := r.get(ctx, key)
	if err != nil {
		return protocol.Token{}, err
	}
	if ok {
		return t, nil
	}

	created, err := issue(ctx)
	if err != nil {
		return protocol.Token{}, fmt.Errorf("issue token for player %d: %w", player, err)
	}

	stored, err := r.client.SetNX(ctx, key, r.codec.Encode(created), ttl).Result()
	if err != nil {
		return protocol.Token{}, fmt.Errorf("redis setnx error: %w", err)
	}
	if stored {
		return created, nil
	}

	// Lost the race: return what the winner wrote.
	t, ok, err = r.get(ctx, key)
	if err != nil {
		return protocol.Token{}, err
	}
	if !ok {
		return protocol.Token{}, fmt.Errorf("token for player %d expired while issuing", player)
	}

	return t, nil
}

// Lookup implements TokenStore.
func (r *RedisStore) Lookup(ctx context.Context, player protocol.PlayerID) (protocol.Token, bool, error) {
	return r.get(ctx, tokenKey(player))
}

// Revoke implements TokenStore.
func (r *RedisStore) Revoke(ctx context.Context, player protocol.PlayerID) error {
	if err := r.client.Del(ctx, tokenKey(player)).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Count implements TokenStore. It scans the token key space rather than
// the whole database, which may hold other data.
func (r *RedisStore) Count(ctx context.Context) (int, error) {
	count := 0

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}

	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan tokens: %w", err)
	}

	return count, nil
}

func (r *RedisStore) get(ctx context.Context, key string) (protocol.Token, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return protocol.Token{}, false, nil
	}
	if err != nil {
		return protocol.Token{}, false, fmt.Errorf("redis get error: %w", err)
	}

	t, err := r.codec.Decode(val)
	if err != nil {
		return protocol.Token{}, false, fmt.Errorf("failed to decode stored token: %w", err)
	}

	return t, true, nil
}
