// Package catalog serves TTL-cached snapshots of the active catalog.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// Store is the external catalog source.
type Store interface {
	GetActiveCatalogItems(ctx context.Context) ([]entity.CatalogItem, error)
}

// Snapshot is an immutable view of the catalog. Version changes on every
// successful reload.
type Snapshot struct {
	Version  uint64
	Items    []entity.CatalogItem
	LoadedAt time.Time
}

// Cache reloads the catalog at most once per TTL. When a reload fails the
// previous snapshot keeps being served.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current *Snapshot
	group   singleflight.Group
}

func NewCache(store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, ttl: ttl, logger: logger, now: time.Now}
}

// Get returns a fresh snapshot, reloading when the TTL has elapsed.
func (c *Cache) Get(ctx context.Context) (Snapshot, error) {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()
	if cur != nil && c.now().Sub(cur.LoadedAt) < c.ttl {
		return *cur, nil
	}

	v, err, _ := c.group.Do("load", func() (any, error) {
		return c.reload(ctx)
	})
	if err != nil {
		if cur != nil {
			c.logger.Warn("catalog.reload.stale", "error", err, "version", cur.Version, "age", c.now().Sub(cur.LoadedAt).String())
			return *cur, nil
		}
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

func (c *Cache) reload(ctx context.Context) (Snapshot, error) {
	items, err := c.store.GetActiveCatalogItems(ctx)
	if err != nil {
		return Snapshot{}, common.ProviderUnavailable("catalog store", err)
	}
	sorted := make([]entity.CatalogItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	c.mu.Lock()
	defer c.mu.Unlock()
	var version uint64 = 1
	if c.current != nil {
		version = c.current.Version + 1
	}
	snap := &Snapshot{Version: version, Items: sorted, LoadedAt: c.now()}
	c.current = snap
	c.logger.Info("catalog.reload.done", "version", version, "items", len(sorted))
	return *snap, nil
}

// Invalidate forces the next Get to reload.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		stale := *c.current
		stale.LoadedAt = time.Time{}
		c.current = &stale
	}
}
