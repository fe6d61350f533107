package util

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrNoCapacity 表示创建缓存时没有给出正的容量。
var ErrNoCapacity = errors.New("lru: capacity must be positive")

// CacheConfig 配置 LRU 缓存。
type CacheConfig struct {
	Capacity int              // 最大条目数，必须大于 0
	TTL      time.Duration    // 条目存活时间，0 表示永不过期
	Now      func() time.Time // 时钟，测试中可替换
}

// CacheStats 是缓存命中统计。
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

type lruEntry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// LRUCache 是线程安全的泛型 LRU 缓存，支持按 TTL 被动过期。
type LRUCache[K comparable, V any] struct {
	mu    sync.Mutex
	cfg   CacheConfig
	order *list.List
	items map[K]*list.Element
	stats CacheStats
}

// NewLRU 创建 LRU 缓存。
func NewLRU[K comparable, V any](cfg CacheConfig) (*LRUCache[K, V], error) {
	if cfg.Capacity <= 0 {
		return nil, ErrNoCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &LRUCache[K, V]{
		cfg:   cfg,
		order: list.New(),
		items: make(map[K]*list.Element, cfg.Capacity),
	}, nil
}

// Get 返回未过期的值并把它标记为最近使用。
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := el.Value.(*lruEntry[K, V])
	if c.expired(e) {
		c.remove(el)
		c.stats.Misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Put 写入或覆盖一个值，并刷新它的过期时间。
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*lruEntry[K, V])
		e.value = value
		e.expires = c.deadline()
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value, expires: c.deadline()})
	for c.order.Len() > c.cfg.Capacity {
		c.remove(c.order.Back())
		c.stats.Evictions++
	}
}

// Remove 删除指定键，键不存在时什么也不做。
func (c *LRUCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len 返回当前条目数，包括尚未被访问到的过期条目。
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats 返回累计的命中统计。
func (c *LRUCache[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *LRUCache[K, V]) deadline() time.Time {
	if c.cfg.TTL <= 0 {
		return time.Time{}
	}
	return c.cfg.Now().Add(c.cfg.TTL)
}

func (c *LRUCache[K, V]) expired(e *lruEntry[K, V]) bool {
	return !e.expires.IsZero() && c.cfg.Now().After(e.expires)
}

func (c *LRUCache[K, V]) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*lruEntry[K, V]).key)
}
