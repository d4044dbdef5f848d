// Package cache holds the Redis connection and the cross-process render
// lock built on it.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"billdesk/internal/invoice"
	"billdesk/internal/logger"
)

// ConnectRedis initializes and returns a Redis client instance.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log := logger.WithComponent("cache")
	log.Debug().Str("addr", addr).Msg("Connected to Redis")
	return rdb, nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	return nil
}

// KeyPrefix namespaces render lock keys.
const KeyPrefix = "billdesk:render:"

// release deletes the lock only while it still carries our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RenderLock is an invoice.RenderGuard shared by every process using the
// same Redis. A render that finds the lock taken fails fast with
// invoice.ErrRenderInProgress instead of waiting.
type RenderLock struct {
	client redis.UniversalClient
	ttl    time.Duration
	local  *invoice.LocalGuard
	log    zerolog.Logger
}

var _ invoice.RenderGuard = (*RenderLock)(nil)

// NewRenderLock creates a lock whose keys expire after ttl, so a crashed
// renderer cannot block an invoice forever.
func NewRenderLock(client redis.UniversalClient, ttl time.Duration) *RenderLock {
	return &RenderLock{
		client: client,
		ttl:    ttl,
		local:  invoice.NewLocalGuard(),
		log:    logger.WithComponent("render-lock"),
	}
}

// LockKey returns the Redis key guarding an invoice.
func LockKey(invoiceNumber string) string {
	return KeyPrefix + invoiceNumber
}

// Do implements invoice.RenderGuard. Callers in the same process are
// coalesced before the Redis lock is attempted.
func (l *RenderLock) Do(ctx context.Context, key string, fn func() (string, error)) (string, error) {
	return l.local.Do(ctx, key, func() (string, error) {
		return l.locked(ctx, key, fn)
	})
}

func (l *RenderLock) locked(ctx context.Context, key string, fn func() (string, error)) (string, error) {
	redisKey := LockKey(key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire render lock %s: %w", redisKey, err)
	}
	if !ok {
		l.log.Info().Str("invoice_number", key).Msg("Render already in progress elsewhere")
		return "", invoice.ErrRenderInProgress
	}

	defer func() {
		// The render ctx may already be done; release with a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := release.Run(rctx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.log.Warn().Err(err).Str("invoice_number", key).Msg("Failed to release render lock")
		}
	}()

	return fn()
}
