package dataset

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes normalization by content hash. Cached values are shared and must be
// treated as read-only.
type Cache struct {
	lru *lru.Cache[string, cached]
}

type cached struct {
	n   *Normalized
	sum Summary
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 128
	}
	c, err := lru.New[string, cached](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func cacheKey(hash string, opts Options) string {
	opts = opts.withDefaults()
	return fmt.Sprintf("%s|%.3f|%d", hash, opts.Threshold, opts.MinWideColumns)
}

// Normalize returns the cached result for raw.Hash or computes and stores it. Pinned
// options bypass the cache.
func (c *Cache) Normalize(raw *Raw, opts Options) (*Normalized, Summary, bool) {
	if c == nil || raw.Hash == "" || len(opts.Pinned) > 0 {
		n, s := Normalize(raw, opts)
		return n, s, false
	}
	key := cacheKey(raw.Hash, opts)
	if v, ok := c.lru.Get(key); ok {
		return v.n, v.sum, true
	}
	n, s := Normalize(raw, opts)
	c.lru.Add(key, cached{n: n, sum: s})
	return n, s, false
}

// Lookup returns a cached normalization without computing one.
func (c *Cache) Lookup(hash string, opts Options) (*Normalized, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(cacheKey(hash, opts))
	return v.n, ok
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
