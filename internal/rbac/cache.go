package rbac

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Key identifies one cached membership.
type Key struct {
	PrincipalID    string
	OrganizationID string
}

// Entry is a cached lookup result. RoleNone records that no active membership exists.
type Entry struct {
	Role Role
}

// Cache holds membership lookups keyed by (principal, organization).
//
// Fills are conditional: Lookup returns the cache epoch observed before the store read, and
// Store must drop the fill if any invalidation happened since. That keeps a lookup that raced
// with a deactivation from re-inserting the old role.
type Cache interface {
	Lookup(ctx context.Context, key Key) (entry Entry, epoch uint64, ok bool, err error)
	Store(ctx context.Context, key Key, epoch uint64, entry Entry) error
	Invalidate(ctx context.Context, key Key) error
}

// MemoryCache is a process-local Cache. Invalidations are only visible to this process,
// so it is suitable for single-instance deployments.
type MemoryCache struct {
	mu      sync.Mutex
	epoch   uint64
	entries *expirable.LRU[Key, Entry]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 10000
	}
	return &MemoryCache{entries: expirable.NewLRU[Key, Entry](size, nil, ttl)}
}

func (m *MemoryCache) Lookup(_ context.Context, key Key) (Entry, uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries.Get(key)
	return e, m.epoch, ok, nil
}

func (m *MemoryCache) Store(_ context.Context, key Key, epoch uint64, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch {
		return nil
	}
	m.entries.Add(key, entry)
	return nil
}

func (m *MemoryCache) Invalidate(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	m.entries.Remove(key)
	return nil
}

// Len is the number of live entries.
func (m *MemoryCache) Len() int {
	return m.entries.Len()
}
