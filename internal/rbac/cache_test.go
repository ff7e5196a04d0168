package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() Key {
	return Key{PrincipalID: uuid.NewString(), OrganizationID: uuid.NewString()}
}

func TestMemoryCache_StoreAndLookup(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()
	k := testKey()

	_, epoch, ok, err := c.Lookup(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Store(ctx, k, epoch, Entry{Role: RoleAdmin}))
	e, _, ok, err := c.Lookup(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, e.Role)
}

func TestMemoryCache_FillAfterInvalidateIsDropped(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()
	k := testKey()

	_, epoch, _, _ := c.Lookup(ctx, k)
	// A deactivation lands between the lookup and the fill.
	require.NoError(t, c.Invalidate(ctx, k))
	require.NoError(t, c.Store(ctx, k, epoch, Entry{Role: RoleOwner}))

	_, _, ok, _ := c.Lookup(ctx, k)
	assert.False(t, ok, "stale fill must not be cached")
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache(10, 20*time.Millisecond)
	ctx := context.Background()
	k := testKey()

	_, epoch, _, _ := c.Lookup(ctx, k)
	require.NoError(t, c.Store(ctx, k, epoch, Entry{Role: RoleViewer}))

	assert.Eventually(t, func() bool {
		_, _, ok, _ := c.Lookup(ctx, k)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func setupRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c, err := NewRedisCache(rdb, time.Minute, "test:")
	require.NoError(t, err)
	return c, mr
}

func TestRedisCache_StoreAndLookup(t *testing.T) {
	c, mr := setupRedisCache(t)
	ctx := context.Background()
	k := testKey()

	_, epoch, ok, err := c.Lookup(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), epoch)

	require.NoError(t, c.Store(ctx, k, epoch, Entry{Role: RoleEditor}))
	e, _, ok, err := c.Lookup(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, RoleEditor, e.Role)

	ttl := mr.TTL(c.entryKey(k))
	assert.True(t, ttl > 0 && ttl <= time.Minute, "entry must carry a ttl, got %s", ttl)
}

func TestRedisCache_CachesAbsence(t *testing.T) {
	c, _ := setupRedisCache(t)
	ctx := context.Background()
	k := testKey()

	_, epoch, _, _ := c.Lookup(ctx, k)
	require.NoError(t, c.Store(ctx, k, epoch, Entry{Role: RoleNone}))

	e, _, ok, err := c.Lookup(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, RoleNone, e.Role)
}

func TestRedisCache_InvalidateDropsEntryAndRacingFill(t *testing.T) {
	c, _ := setupRedisCache(t)
	ctx := context.Background()
	k := testKey()

	_, epoch, _, _ := c.Lookup(ctx, k)
	require.NoError(t, c.Store(ctx, k, epoch, Entry{Role: RoleOwner}))

	_, staleEpoch, _, _ := c.Lookup(ctx, testKey())
	require.NoError(t, c.Invalidate(ctx, k))

	_, newEpoch, ok, err := c.Lookup(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, staleEpoch+1, newEpoch)

	require.NoError(t, c.Store(ctx, k, staleEpoch, Entry{Role: RoleOwner}))
	_, _, ok, _ = c.Lookup(ctx, k)
	assert.False(t, ok, "fill with a pre-invalidation epoch must be dropped")
}

func TestRedisCache_ServiceFallsBackToStoreWhenRedisDown(t *testing.T) {
	c, mr := setupRedisCache(t)
	store := newFakeStore()
	p, o := uuid.NewString(), uuid.NewString()
	store.put(p, o, RoleAdmin.String(), true)
	svc := NewService(store, WithCache(c))

	mr.Close()

	d, err := svc.Authorize(context.Background(), p, o, ActionAdminWrite)
	require.NoError(t, err)
	assert.Equal(t, Allow, d)
	assert.Equal(t, 1, store.callCount())
}

func TestNewRedisCache_Validates(t *testing.T) {
	_, err := NewRedisCache(nil, time.Minute, "")
	assert.Error(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	_, err = NewRedisCache(rdb, 0, "")
	assert.Error(t, err)
}
