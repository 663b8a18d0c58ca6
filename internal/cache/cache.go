// Package cache memoizes whole-table snapshots for a bounded time. Every
// implementation invalidates globally: callers drop all snapshots once a
// write batch has finished, never a single table.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/clinic-agenda/internal/observability/metrics"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
)

// DefaultTTL matches the ten minute window the clinic pages were tuned for.
const DefaultTTL = 10 * time.Minute

// Tables serves snapshots of named tables.
type Tables interface {
	// GetOrLoad returns a snapshot no older than the TTL, loading it on miss.
	// The returned table is a private copy.
	GetOrLoad(ctx context.Context, name string) (*rowstore.Table, error)
	// InvalidateAll drops every snapshot.
	InvalidateAll(ctx context.Context) error
}

type entry struct {
	table    *rowstore.Table
	loadedAt time.Time
}

// MemoryCache keeps snapshots in process memory.
type MemoryCache struct {
	loader  rowstore.Reader
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.CacheMetrics

	mu      sync.Mutex
	entries map[string]entry
	// bumped by InvalidateAll; loads started under an older value are not stored
	gen uint64
}

// NewMemoryCache creates a cache over loader. ttl <= 0 selects DefaultTTL.
func NewMemoryCache(loader rowstore.Reader, ttl time.Duration, m *metrics.CacheMetrics) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
		metrics: m,
		entries: make(map[string]entry),
	}
}

// WithClock overrides the time source; used by tests.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) GetOrLoad(ctx context.Context, name string) (*rowstore.Table, error) {
	c.mu.Lock()
	e, ok := c.entries[name]
	gen := c.gen
	c.mu.Unlock()
	if ok && c.now().Sub(e.loadedAt) < c.ttl {
		c.metrics.ObserveLookup(name, true)
		return e.table.Clone(), nil
	}
	c.metrics.ObserveLookup(name, false)

	table, err := c.loader.ReadTable(ctx, name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.gen == gen {
		c.entries[name] = entry{table: table.Clone(), loadedAt: c.now()}
	}
	c.mu.Unlock()
	return table, nil
}

func (c *MemoryCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.gen++
	c.mu.Unlock()
	c.metrics.ObserveInvalidation()
	return nil
}
