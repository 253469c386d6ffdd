package universe

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Cache is the session-scoped universe cache. "Value present" and "fetch in
// progress" are two independent flags checked explicitly, so a remounting
// caller never kicks off a duplicate load while one is pending. Injected
// into the orchestrator rather than living at package scope, so several
// independent sessions can coexist in one process.
type Cache struct {
	loader Loader

	mu       sync.Mutex
	hasValue bool
	inFlight bool
	value    *Universe
	waiters  []chan result
}

type result struct {
	u   *Universe
	err error
}

func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader}
}

// Get returns the cached universe, loading it on first use. Concurrent
// callers during the initial load all wait on the same fetch.
func (c *Cache) Get() (*Universe, error) {
	c.mu.Lock()
	if c.hasValue {
		u := c.value
		c.mu.Unlock()
		return u, nil
	}
	if c.inFlight {
		ch := make(chan result, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		r := <-ch
		return r.u, r.err
	}
	c.inFlight = true
	c.mu.Unlock()

	start := time.Now()
	u, err := c.loader.Load()
	if err != nil {
		err = fmt.Errorf("loading universe: %w", err)
	} else {
		log.Printf("universe loaded features=%d elapsed=%s", u.Size(), time.Since(start).Round(time.Millisecond))
	}

	c.mu.Lock()
	c.inFlight = false
	if err == nil {
		c.hasValue = true
		c.value = u
	}
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- result{u: u, err: err}
	}
	return u, err
}

// Invalidate drops the cached value. The next Get re-fetches. A load already
// in flight is left to finish; its result still lands in the cache.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.hasValue = false
	c.value = nil
	c.mu.Unlock()
	log.Println("universe cache invalidated")
}

// Populated reports whether a value is cached, without triggering a load.
func (c *Cache) Populated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasValue
}
