package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value int `json:"value"`
}

func newTestCache(t *testing.T) (*JSONCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJSONCache(client, time.Minute), mr
}

func TestFetchJSONPopulatesAndReuses(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		return payload{Value: 42}, nil
	}

	var out payload
	require.NoError(t, cache.FetchJSON(ctx, "k", &out, loader))
	require.Equal(t, 42, out.Value)
	require.Equal(t, 1, loads)

	out = payload{}
	require.NoError(t, cache.FetchJSON(ctx, "k", &out, loader))
	require.Equal(t, 42, out.Value)
	require.Equal(t, 1, loads)
}

func TestFetchJSONAfterDelete(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		return payload{Value: loads}, nil
	}

	var out payload
	require.NoError(t, cache.FetchJSON(ctx, "k", &out, loader))
	require.NoError(t, cache.Delete(ctx, "k"))
	require.NoError(t, cache.FetchJSON(ctx, "k", &out, loader))
	require.Equal(t, 2, out.Value)
}

func TestNilCacheDegradesToLoader(t *testing.T) {
	ctx := context.Background()

	var nilCache *JSONCache
	var out payload
	err := nilCache.FetchJSON(ctx, "k", &out, func(ctx context.Context) (any, error) {
		return payload{Value: 7}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, out.Value)
}
