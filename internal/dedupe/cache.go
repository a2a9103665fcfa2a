// ABOUTME: TTL cache of one-shot request ids so transport retries run a handler once
// ABOUTME: Entries are scoped by sending context and evicted oldest-first at capacity

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// Defaults used when a Config field is zero.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 10000
)

// Config holds cache tuning.
type Config struct {
	TTL        time.Duration
	MaxEntries int

	// SweepInterval is how often expired entries are dropped. Defaults to TTL.
	SweepInterval time.Duration
}

type entry struct {
	key    string
	marked time.Time
}

// Cache remembers request ids for a bounded time.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a cache and starts its background sweeper.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.TTL
	}

	c := &Cache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		ttl:     cfg.TTL,
		maxSize: cfg.MaxEntries,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.sweepLoop(cfg.SweepInterval)
	return c
}

// Key scopes a request id to the context that sent it.
// Anonymous senders share one scope.
func Key(contextID, requestID string) string {
	return contextID + "\x00" + requestID
}

// Seen reports whether key was marked within the TTL. If not, it is marked now.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.index[key]; ok {
		e := el.Value.(*entry)
		if now.Sub(e.marked) < c.ttl {
			return true
		}
		e.marked = now
		c.order.MoveToBack(el)
		return false
	}

	if len(c.index) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			c.order.Remove(front)
			delete(c.index, front.Value.(*entry).key)
		}
	}
	c.index[key] = c.order.PushBack(&entry{key: key, marked: now})
	return false
}

// Forget unmarks key so a later retry runs again.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.order.Remove(el)
		delete(c.index, key)
	}
}

// Len returns the number of tracked keys, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// sweep drops expired entries. Entries are in mark order so it stops at the first live one.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.order.Front(); el != nil; {
		e := el.Value.(*entry)
		if now.Sub(e.marked) < c.ttl {
			return
		}
		next := el.Next()
		c.order.Remove(el)
		delete(c.index, e.key)
		el = next
	}
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
