// Package cache memoizes generation results so that identical
// (requirement, context) pairs within the TTL do not trigger a second paid
// upstream call. Keys are content-addressed over the exact input text: no
// normalization is applied, so whitespace or case differences produce
// distinct entries. That imprecision is deliberate — it keeps the key a pure
// function of the input and errs on the side of a fresh LLM call.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"github.com/mescobar996/testcraft-ai-sub000/models"
)

// DefaultTTL is the standard lifetime of a cached generation.
const DefaultTTL = 24 * time.Hour

type entry struct {
	value     *models.GenerationResult
	expiresAt time.Time
}

// Cache is a process-wide TTL cache of generation results. Construct with
// New and release with Stop; entries are purged lazily on expired reads and
// periodically by the background sweep.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]entry
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Cache with the given TTL. A positive sweepInterval starts a
// background goroutine purging expired entries; pass 0 to disable (tests).
func New(ttl, sweepInterval time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}
	return c
}

// Key derives the content address for a (requirement, context) pair.
// Deterministic: identical text always yields the same key.
func Key(requirement, context string) string {
	sum := sha256.Sum256([]byte(requirement + context))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for the pair, or ok=false on a miss. An
// entry past its expiry behaves as a miss and is purged on the spot, so a
// later read cannot resurrect it.
func (c *Cache) Get(requirement, context string) (*models.GenerationResult, bool) {
	key := Key(requirement, context)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores the result for the pair, unconditionally overwriting any
// previous entry under the same key and restarting its TTL.
func (c *Cache) Set(requirement, context string, value *models.GenerationResult) {
	key := Key(requirement, context)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop terminates the background sweep. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed := c.sweep()
			if removed > 0 {
				log.Printf("INFO: [GenerationCache] Swept %d expired entries.", removed)
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
