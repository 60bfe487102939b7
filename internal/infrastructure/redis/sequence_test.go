package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return loc
}

func TestOrderNumberGenerator_Publish(t *testing.T) {
	mr, client := newTestRedis(t)
	loc := tokyo(t)
	now := time.Date(2026, 10, 1, 10, 0, 0, 0, loc)
	mr.SetTime(now)
	gen := NewOrderNumberGenerator(client, "ordercore", loc)
	ctx := context.Background()

	first, err := gen.Publish(ctx, "TKY", now)
	require.NoError(t, err)
	second, err := gen.Publish(ctx, "TKY", now.Add(time.Hour))
	require.NoError(t, err)
	otherVenue, err := gen.Publish(ctx, "OSK", now)
	require.NoError(t, err)
	nextDay, err := gen.Publish(ctx, "TKY", now.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, "TKY-261001-000001", first)
	assert.Equal(t, "TKY-261001-000002", second)
	assert.Equal(t, "OSK-261001-000001", otherVenue)
	assert.Equal(t, "TKY-261002-000001", nextDay)
}

func TestOrderNumberGenerator_UsesLocalDate(t *testing.T) {
	mr, client := newTestRedis(t)
	loc := tokyo(t)
	// 2026-09-30 20:00 UTC is already 2026-10-01 in Tokyo
	orderDate := time.Date(2026, 9, 30, 20, 0, 0, 0, time.UTC)
	mr.SetTime(orderDate)
	gen := NewOrderNumberGenerator(client, "ordercore", loc)

	number, err := gen.Publish(context.Background(), "TKY", orderDate)
	require.NoError(t, err)

	assert.Equal(t, "TKY-261001-000001", number)
	assert.Equal(t, "ordercore:orderNumber:TKY:261001", gen.Key("TKY", orderDate))
}

func TestOrderNumberGenerator_CounterExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	loc := tokyo(t)
	now := time.Date(2026, 10, 1, 10, 0, 0, 0, loc)
	mr.SetTime(now)
	gen := NewOrderNumberGenerator(client, "ordercore", loc)
	ctx := context.Background()

	_, err := gen.Publish(ctx, "TKY", now)
	require.NoError(t, err)

	ttl, err := gen.TTL(ctx, gen.Key("TKY", now))
	require.NoError(t, err)
	// midnight of 10-03 in Tokyo
	assert.Equal(t, 38*time.Hour, ttl)

	mr.FastForward(39 * time.Hour)
	assert.False(t, mr.Exists(gen.Key("TKY", now)))
}

func TestOrderNumberGenerator_ConcurrentPublishIsUnique(t *testing.T) {
	mr, client := newTestRedis(t)
	loc := tokyo(t)
	now := time.Date(2026, 10, 1, 10, 0, 0, 0, loc)
	mr.SetTime(now)
	gen := NewOrderNumberGenerator(client, "ordercore", loc)

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := gen.Publish(context.Background(), "TKY", now)
			assert.NoError(t, err)
			mu.Lock()
			seen[number] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestConfirmationNumberGenerator_Publish(t *testing.T) {
	mr, client := newTestRedis(t)
	now := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	mr.SetTime(now)
	eventEnd := now.Add(48 * time.Hour)
	gen := NewConfirmationNumberGenerator(client, "ordercore")
	ctx := context.Background()

	first, err := gen.Publish(ctx, "ev-1", eventEnd)
	require.NoError(t, err)
	second, err := gen.Publish(ctx, "ev-1", eventEnd)
	require.NoError(t, err)
	other, err := gen.Publish(ctx, "ev-2", eventEnd)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, int64(1), other)

	ttl, err := gen.TTL(ctx, gen.Key("ev-1"))
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour+confirmationNumberLifetime, ttl)
}
