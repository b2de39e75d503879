package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/credential-auth/internal/observability"
)

const rehashLeaseReleaseTimeout = 2 * time.Second

// Deletes the lease only while it still carries our token, so an expired
// lease taken over by another login is left alone.
var redisRehashReleaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisRehashGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisRehashGuard(client redis.UniversalClient, prefix string, ttl time.Duration, logger *slog.Logger) *RedisRehashGuard {
	if prefix == "" {
		prefix = "credential_rehash"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisRehashGuard{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: observability.ComponentLogger(logger, "rehash_guard"),
	}
}

func (g *RedisRehashGuard) Acquire(ctx context.Context, userID uint) (func(), bool, error) {
	key := g.leaseKey(userID)
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return noopRelease, false, fmt.Errorf("acquire rehash lease: %w", err)
	}
	if !ok {
		return noopRelease, false, nil
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rehashLeaseReleaseTimeout)
		defer cancel()
		if err := redisRehashReleaseScript.Run(releaseCtx, g.client, []string{key}, token).Err(); err != nil {
			g.logger.WarnContext(releaseCtx, "release rehash lease failed", "user_id", userID, "error", err)
		}
	}, true, nil
}

func (g *RedisRehashGuard) leaseKey(userID uint) string {
	return fmt.Sprintf("%s:%d", g.prefix, userID)
}
