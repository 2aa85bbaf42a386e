package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bridge:sent:"

// RedisLedger shares the sent-alert set between notifier replicas.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

// OpenRedis parses url and pings the server before returning.
func OpenRedis(ctx context.Context, url string, ttl time.Duration) (*RedisLedger, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedis(client, ttl), nil
}

func (l *RedisLedger) Seen(ctx context.Context, keys []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return seen, nil
	}

	pipe := l.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Exists(ctx, keyPrefix+k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("check ledger: %w", err)
	}
	for i, cmd := range cmds {
		if cmd.Val() > 0 {
			seen[keys[i]] = true
		}
	}
	return seen, nil
}

func (l *RedisLedger) Mark(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	sentAt := time.Now().UTC().Format(time.RFC3339)
	pipe := l.client.TxPipeline()
	for _, k := range keys {
		pipe.Set(ctx, keyPrefix+k, sentAt, l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark ledger: %w", err)
	}
	return nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
