package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/ratiba/core/timetable"
)

var nowFunc = time.Now // mockable

type memoryItem struct {
	catalog   timetable.Catalog
	expiresAt time.Time
}

// MemoryCache keeps catalogs in process memory for `ttl`.
type MemoryCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]memoryItem
}

var _ timetable.CatalogCache = (*MemoryCache)(nil)

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, items: make(map[string]memoryItem)}
}

func (c *MemoryCache) Get(_ context.Context, schoolID string) (timetable.Catalog, bool, error) {
	c.mu.RLock()
	item, ok := c.items[schoolID]
	c.mu.RUnlock()

	if !ok {
		return timetable.Catalog{}, false, nil
	}
	if c.ttl > 0 && !nowFunc().Before(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, schoolID)
		c.mu.Unlock()
		return timetable.Catalog{}, false, nil
	}
	return item.catalog, true, nil
}

func (c *MemoryCache) Set(_ context.Context, catalog timetable.Catalog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[catalog.SchoolID] = memoryItem{catalog: catalog, expiresAt: nowFunc().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, schoolID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, schoolID)
	return nil
}
