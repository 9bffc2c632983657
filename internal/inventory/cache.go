package inventory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a cached inventory snapshot is served before the
// next resolve forces a refill.
const DefaultTTL = 7 * time.Second

// Loader fetches a fresh inventory snapshot, typically Client.GetInventory.
type Loader func(ctx context.Context) (*Inventory, error)

// Cache holds a single short-TTL snapshot of the upstream inventory,
// collapsing concurrent cache-miss refills into one upstream call via
// singleflight. There is no negative caching: a failed refill simply
// leaves the previous snapshot (if any) untouched and returns the error
// to the caller.
type Cache struct {
	ttl   time.Duration
	group singleflight.Group

	mu       sync.RWMutex
	snapshot *Inventory
	fetched  time.Time
}

// NewCache builds a Cache with the given TTL. A zero ttl uses DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl}
}

// Get returns the current snapshot if it's still within TTL.
func (c *Cache) Get() (*Inventory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil || time.Since(c.fetched) > c.ttl {
		return nil, false
	}
	return c.snapshot, true
}

// GetOrRefill returns the cached snapshot if fresh, otherwise calls load
// to refill it. Concurrent callers racing a miss share a single upstream
// call.
func (c *Cache) GetOrRefill(ctx context.Context, load Loader) (*Inventory, error) {
	if snap, ok := c.Get(); ok {
		return snap, nil
	}

	v, err, _ := c.group.Do("refill", func() (interface{}, error) {
		// Re-check under the singleflight key: another caller may have
		// refilled while we were waiting to enter Do.
		if snap, ok := c.Get(); ok {
			return snap, nil
		}
		// The shared refill is detached from the first caller's
		// cancellation, so it runs to completion for every waiter.
		inv, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snapshot = inv
		c.fetched = time.Now()
		c.mu.Unlock()
		return inv, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Inventory), nil
}

// FetchedAt returns the time of the last successful refill, or the zero
// time if the cache has never been populated.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetched
}

// InstanceByName returns a single instance from the current (or freshly
// refilled) snapshot.
func (c *Cache) InstanceByName(ctx context.Context, load Loader, name string) (Instance, bool, error) {
	inv, err := c.GetOrRefill(ctx, load)
	if err != nil {
		return Instance{}, false, err
	}
	for _, inst := range inv.Instances() {
		if inst.Name == name {
			return inst, true, nil
		}
	}
	return Instance{}, false, nil
}

// Serialize renders the snapshot the way the cache's literal data model
// describes entries being stored: a JSON document per well-known key
// ("containers_full", "instances", or an instance name). It's exposed for
// parity with that model and for the JSON read API's cache introspection;
// the in-process Get/GetOrRefill accessors above are what the resolver
// actually calls on the hot path.
func (c *Cache) Serialize() (map[string]string, error) {
	inv, ok := c.Get()
	if !ok {
		return nil, nil
	}
	full, err := json.Marshal(inv)
	if err != nil {
		return nil, err
	}
	names, err := json.Marshal(inv.Names())
	if err != nil {
		return nil, err
	}
	out := map[string]string{
		"containers_full": string(full),
		"instances":       string(names),
	}
	for _, inst := range inv.Instances() {
		b, err := json.Marshal(inst)
		if err != nil {
			return nil, err
		}
		out[inst.Name] = string(b)
	}
	return out, nil
}
