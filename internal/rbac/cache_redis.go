package rbac

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "rbac:"

// storeIfEpochScript writes the entry only if no invalidation happened since the caller's lookup.
var storeIfEpochScript = redis.NewScript(`
-- KEYS[1] = entry key
-- KEYS[2] = epoch key
-- ARGV[1] = epoch observed at lookup
-- ARGV[2] = role name ("" for no membership)
-- ARGV[3] = ttl_ms
--
-- Returns:
--  1 if stored
--  0 if an invalidation raced the fill
local current = redis.call('GET', KEYS[2])
if current == false then
  current = '0'
end
if current ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisCache shares membership lookups across API instances.
// Invalidation bumps a shared epoch and deletes the entry in one MULTI/EXEC.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, prefix string) (*RedisCache, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be > 0")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: prefix}, nil
}

func (c *RedisCache) entryKey(k Key) string {
	return c.prefix + "m:" + k.PrincipalID + ":" + k.OrganizationID
}

func (c *RedisCache) epochKey() string {
	return c.prefix + "epoch"
}

func (c *RedisCache) Lookup(ctx context.Context, key Key) (Entry, uint64, bool, error) {
	vals, err := c.rdb.MGet(ctx, c.entryKey(key), c.epochKey()).Result()
	if err != nil {
		return Entry{}, 0, false, err
	}

	var epoch uint64
	if s, ok := vals[1].(string); ok {
		epoch, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Entry{}, 0, false, fmt.Errorf("redis cache: bad epoch %q", s)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return Entry{}, epoch, false, nil
	}
	if raw == "" {
		return Entry{Role: RoleNone}, epoch, true, nil
	}
	role, err := ParseRole(raw)
	if err != nil {
		// Unknown payload: report a miss so the store is consulted.
		return Entry{}, epoch, false, nil
	}
	return Entry{Role: role}, epoch, true, nil
}

func (c *RedisCache) Store(ctx context.Context, key Key, epoch uint64, entry Entry) error {
	keys := []string{c.entryKey(key), c.epochKey()}
	_, err := storeIfEpochScript.Run(ctx, c.rdb, keys, strconv.FormatUint(epoch, 10), entry.Role.String(), c.ttl.Milliseconds()).Int()
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, key Key) error {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, c.epochKey())
		p.Del(ctx, c.entryKey(key))
		return nil
	})
	return err
}
