package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lifeline/pkg/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, ttl time.Duration) (*RedisWindowCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisWindowCache(client, "ranking:", ttl), mr
}

func TestWindowCacheProperties(t *testing.T) {
	c, _ := newCache(t, time.Minute)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	properties := gopter.NewProperties(nil)

	properties.Property("cached window keeps order and ranking fields", prop.ForAll(
		func(levels []int) bool {
			records := make([]store.Record, len(levels))
			for i, level := range levels {
				records[i] = store.Record{
					ID:              fmt.Sprintf("sku-%d", i),
					Nickname:        fmt.Sprintf("Player%08d", i),
					Level:           level,
					FirstAchievedAt: base.Add(time.Duration(i) * time.Second),
					ClientVersion:   "1.4.0-ranked",
					Payload:         `{"Level":1}`,
				}
			}

			key := fmt.Sprintf("window:%d", len(levels))
			if err := c.Set(context.Background(), key, records); err != nil {
				return false
			}
			got, ok, err := c.Get(context.Background(), key)
			if err != nil || !ok || len(got) != len(records) {
				return false
			}
			for i := range got {
				if got[i].ID != records[i].ID ||
					got[i].Level != records[i].Level ||
					got[i].Nickname != records[i].Nickname ||
					!got[i].FirstAchievedAt.Equal(records[i].FirstAchievedAt) ||
					got[i].Payload != "" {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 500)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestWindowCacheMissAndExpiry(t *testing.T) {
	c, mr := newCache(t, 15*time.Second)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "window:200")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "window:200", []store.Record{{ID: "abc123", Level: 3}}))
	_, ok, err = c.Get(ctx, "window:200")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 15*time.Second, mr.TTL("ranking:window:200"))

	mr.FastForward(16 * time.Second)
	_, ok, err = c.Get(ctx, "window:200")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWindowCacheCorruptValue(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	require.NoError(t, mr.Set("ranking:window:200", "not json"))

	_, ok, err := c.Get(context.Background(), "window:200")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestWindowCacheUnavailable(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	mr.Close()

	_, _, err := c.Get(context.Background(), "window:200")
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}
