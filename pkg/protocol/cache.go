// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

type (
	// Stats is a snapshot of cache activity for the current activation.
	Stats struct {
		// Hits counts requests answered from the cache.
		Hits uint64
		// Misses counts cache fills (one per address).
		Misses uint64
		// Coalesced counts requests whose fill was shared with at least one
		// concurrent request, the leader included.
		Coalesced uint64
		// Reads counts filesystem reads.
		Reads uint64
		// Entries is the number of cached addresses.
		Entries int
	}

	cacheEntry struct {
		resp *Response
		err  error
	}

	// cache holds one entry per address, payload or error. Entries are
	// never evicted individually; the whole cache is dropped on deactivate.
	cache struct {
		mu      sync.Mutex
		entries map[string]cacheEntry
		group   singleflight.Group

		hits      atomic.Uint64
		misses    atomic.Uint64
		coalesced atomic.Uint64
		reads     atomic.Uint64
	}
)

func newCache() *cache {
	return &cache{entries: make(map[string]cacheEntry)}
}

func (c *cache) lookup(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

// get returns the cached entry for key or runs fill exactly once for all
// concurrent callers and caches its result.
func (c *cache) get(key string, fill func() (*Response, error)) (*Response, error) {
	if e, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return e.resp, e.err
	}

	v, _, shared := c.group.Do(key, func() (any, error) {
		// A fill may have completed between lookup and Do.
		if e, ok := c.lookup(key); ok {
			return e, nil
		}
		c.misses.Add(1)
		resp, err := fill()
		e := cacheEntry{resp: resp, err: err}
		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()
		return e, nil
	})
	if shared {
		c.coalesced.Add(1)
	}
	e := v.(cacheEntry)
	return e.resp, e.err
}

func (c *cache) stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Coalesced: c.coalesced.Load(),
		Reads:     c.reads.Load(),
		Entries:   n,
	}
}
