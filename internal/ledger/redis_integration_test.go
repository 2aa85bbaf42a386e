//go:build integration

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisLedger(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	l, err := OpenRedis(ctx, url, time.Minute)
	require.NoError(t, err)
	defer l.Close()

	seen, err := l.Seen(ctx, []string{"Megastar_toys"})
	require.NoError(t, err)
	assert.Empty(t, seen)

	require.NoError(t, l.Mark(ctx, []string{"Megastar_toys", "Star_electronics"}))

	seen, err = l.Seen(ctx, []string{"Megastar_toys", "Star_electronics", "Europa_groceries"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Megastar_toys": true, "Star_electronics": true}, seen)

	ttl, err := l.client.TTL(ctx, keyPrefix+"Megastar_toys").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
