package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"go-pos-admin/internal/cache"
)

type payload struct {
	SKU   string `json:"sku"`
	Price int64  `json:"price"`
}

func TestJSONRoundTripAndInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.New(client, time.Minute)
	ctx := context.Background()

	key := cache.ProductListKey + ":sort=name"
	require.NoError(t, c.SetJSON(ctx, key, []payload{{SKU: "A", Price: 100}}))

	var got []payload
	hit, err := c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "A", got[0].SKU)

	mr.FastForward(2 * time.Minute)
	hit, err = c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, hit, "expired")

	require.NoError(t, c.SetJSON(ctx, key, []payload{}))
	require.NoError(t, c.SetJSON(ctx, "other", 1))
	require.NoError(t, c.InvalidatePrefix(ctx, cache.ProductListKey))
	require.False(t, mr.Exists(key))
	require.True(t, mr.Exists("other"))
}

func TestDisabledCacheIsNoop(t *testing.T) {
	c := cache.New(nil, time.Minute)
	require.False(t, c.Enabled())

	var dst []payload
	hit, err := c.GetJSON(context.Background(), "k", &dst)
	require.NoError(t, err)
	require.False(t, hit)
	require.NoError(t, c.SetJSON(context.Background(), "k", 1))
	require.NoError(t, c.InvalidatePrefix(context.Background(), "k"))
}
