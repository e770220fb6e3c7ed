package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps revoked jtis as keys that expire together with the token
// they shadow, so the ledger never outgrows the set of live tokens.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(ctx context.Context, addr, pass string, db int) (*RedisLedger, error) {
	const op = "repo.NewRedisLedger"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisLedger{client: client}, nil
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}

func (l *RedisLedger) Revoke(ctx context.Context, jti, tokenType string, expiresAt time.Time) error {
	const op = "repo.RedisLedger.Revoke"

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// already expired; verification rejects it without our help
		return nil
	}

	// SETNX keeps the first revocation; repeats are no-ops
	if err := l.client.SetNX(ctx, revokedKey(jti), tokenType, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (l *RedisLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := l.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("repo.RedisLedger.IsRevoked: %w", err)
	}
	return n > 0, nil
}

// Prune is a no-op: keys carry their own TTL.
func (l *RedisLedger) Prune(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
