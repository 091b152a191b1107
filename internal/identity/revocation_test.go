package identity

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRevocationStore(t *testing.T, cacheTTL time.Duration) (*RevocationStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRevocationStore(client, cacheTTL), mr
}

func TestIsRevokedMissingKeyMeansValid(t *testing.T) {
	store, _ := newRevocationStore(t, 0)
	revoked, err := store.IsRevoked(context.Background(), "tok-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevokeIsVisible(t *testing.T) {
	store, _ := newRevocationStore(t, 0)
	ctx := context.Background()
	require.NoError(t, store.Revoke(ctx, "tok-1", time.Hour))
	revoked, err := store.IsRevoked(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestCacheStaysBoundedUnderLiveEntries(t *testing.T) {
	store, _ := newRevocationStore(t, time.Hour)

	// Fill the cache past its cap with entries that never expire within
	// the test; the store must evict rather than grow.
	for i := 0; i < revocationCacheMax+100; i++ {
		store.remember("tok-"+strconv.Itoa(i), false)
	}
	require.LessOrEqual(t, len(store.cache), revocationCacheMax)

	// Refreshing a cached token must not evict anything.
	before := len(store.cache)
	store.remember("tok-0", true)
	require.LessOrEqual(t, len(store.cache), before)
}

func TestLocalCacheDelaysPropagationAtMostTTL(t *testing.T) {
	store, mr := newRevocationStore(t, 50*time.Millisecond)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "tok-1")
	require.NoError(t, err)
	require.False(t, revoked)

	// Revoke behind the cache's back, as another instance would.
	mr.Set("revoked:tok-1", "revoked")

	revoked, err = store.IsRevoked(ctx, "tok-1")
	require.NoError(t, err)
	require.False(t, revoked, "cached verdict holds within the propagation interval")

	store.now = func() time.Time { return time.Now().Add(time.Second) }
	revoked, err = store.IsRevoked(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, revoked, "after the interval the revocation must be honoured")
}
