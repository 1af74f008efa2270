package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Options configures a [Bounded] cache.
type Options[K comparable, V any] struct {
	// MaxSize is the maximum number of entries held at once. Required.
	MaxSize int

	// TTL is the default time-to-live applied by Set and by values computed
	// through OnMiss. Required.
	TTL time.Duration

	// OnMiss, when set, computes the value for a key that is absent or
	// expired. The result is stored with the default TTL and returned by Get.
	OnMiss func(K) V

	// Name labels the cache in Metrics. Defaults to "default".
	Name string

	// Metrics records hits, misses and evictions. May be nil.
	Metrics *Metrics

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// SetOption adjusts a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl time.Duration
}

// WithTTL overrides the cache's default TTL for one entry.
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// entry is what the insertion-order list holds.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// Bounded is an in-process key/value cache with a hard entry limit, a
// per-entry TTL and insertion-order eviction. Expiry is checked lazily when a
// key is read; there is no background sweeper.
//
// All methods are safe for concurrent use. Each operation holds a single
// mutex for its whole read-check-evict-insert sequence, so the size bound and
// the one-eviction-per-insert rule hold under concurrency. OnMiss runs while
// that mutex is held and must not call back into the same cache.
type Bounded[K comparable, V any] struct {
	mu sync.Mutex

	maxSize int
	ttl     time.Duration
	onMiss  func(K) V
	name    string
	metrics *Metrics
	nowFunc func() time.Time

	items map[K]*list.Element
	order *list.List // front is the oldest insertion
}

// New creates a Bounded cache. It returns an error wrapping
// [ErrInvalidConfig] when MaxSize or TTL is not positive.
func New[K comparable, V any](opts Options[K, V]) (*Bounded[K, V], error) {
	if opts.MaxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be > 0, got %d", ErrInvalidConfig, opts.MaxSize)
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("%w: ttl must be > 0, got %s", ErrInvalidConfig, opts.TTL)
	}

	name := opts.Name
	if name == "" {
		name = "default"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Bounded[K, V]{
		maxSize: opts.MaxSize,
		ttl:     opts.TTL,
		onMiss:  opts.OnMiss,
		name:    name,
		metrics: opts.Metrics,
		nowFunc: now,
		items:   make(map[K]*list.Element, opts.MaxSize),
		order:   list.New(),
	}, nil
}

// Set inserts or replaces the value for key and restarts its TTL. A key that
// is already present is moved to the newest insertion position and does not
// count against capacity a second time. Inserting a new key into a full cache
// first evicts the oldest inserted entry, whether or not it has expired.
func (c *Bounded[K, V]) Set(key K, value V, opts ...SetOption) {
	so := setOptions{ttl: c.ttl}
	for _, o := range opts {
		o(&so)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, so.ttl)
}

// Get returns the value for key when it is present and not expired. An
// expired entry is removed on the spot. On a miss the OnMiss callback, if
// configured, computes the value, which is stored and returned.
func (c *Bounded[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		if c.nowFunc().Before(e.expiresAt) {
			c.metrics.hit(c.name)
			return e.value, true
		}
		c.removeLocked(el)
	}

	c.metrics.miss(c.name)

	if c.onMiss == nil {
		var zero V
		return zero, false
	}

	v := c.onMiss(key)
	c.setLocked(key, v, c.ttl)
	return v, true
}

// Delete removes key if present.
func (c *Bounded[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

// Clear removes every entry.
func (c *Bounded[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element, c.maxSize)
	c.order.Init()
}

// Len reports the number of entries that have not expired.
func (c *Bounded[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	n := 0
	for el := c.order.Front(); el != nil; el = el.Next() {
		if now.Before(el.Value.(*entry[K, V]).expiresAt) {
			n++
		}
	}
	return n
}

// MaxSize returns the configured capacity.
func (c *Bounded[K, V]) MaxSize() int { return c.maxSize }

// setLocked must be called with c.mu held.
func (c *Bounded[K, V]) setLocked(key K, value V, ttl time.Duration) {
	expiresAt := c.nowFunc().Add(ttl)

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToBack(el)
		return
	}

	if len(c.items) >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			c.removeLocked(oldest)
			c.metrics.evict(c.name)
		}
	}

	c.items[key] = c.order.PushBack(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
}

// removeLocked must be called with c.mu held.
func (c *Bounded[K, V]) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
}
