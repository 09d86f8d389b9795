package transpile

import (
	"sync"

	"github.com/dgraph-io/ristretto"
)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 16 << 20
	defaultBufferItems = 64
)

// Cache holds transpiled scripts keyed by the SHA-256 of their source.
// All methods are safe on a nil *Cache, which never hits.
type Cache struct {
	cache  *ristretto.Cache
	mu     sync.RWMutex
	closed bool
}

// NewCache creates a cache bounded to maxBytes of script text. A non-positive
// value uses the default bound.
func NewCache(maxBytes int64) (*Cache, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxCost
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     maxBytes,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{cache: cache}, nil
}

func (c *Cache) Get(hash string) (Script, bool) {
	if !c.open() {
		return Script{}, false
	}
	value, found := c.cache.Get(hash)
	if !found {
		return Script{}, false
	}
	script, ok := value.(Script)
	return script, ok
}

// Set stores script. Admission is asynchronous; call Wait to observe it.
func (c *Cache) Set(script Script) bool {
	if !c.open() {
		return false
	}
	return c.cache.Set(script.Hash, script, int64(len(script.Code)))
}

// Wait blocks until pending sets are applied.
func (c *Cache) Wait() {
	if c.open() {
		c.cache.Wait()
	}
}

func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cache.Close()
}

func (c *Cache) open() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}
