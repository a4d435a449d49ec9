package remote

import (
	"context"
	"sync/atomic"

	"github.com/goburrow/cache"
)

// rangeKey identifies one fetched range. gen is the write generation the
// range was fetched in.
type rangeKey struct {
	gen uint64
	off int64
	n   int64
}

// sizeKey caches the result of Size.
type sizeKey struct {
	gen uint64
}

// CachingFetcher keeps recently fetched ranges of a Fetcher in a bounded
// LRU cache so that several streams over the same resource, or a stream
// reopened after Release, do not fetch the same bytes twice. Cached slices
// are shared and must not be modified. Any write empties the cache.
type CachingFetcher struct {
	f     Fetcher
	cache cache.Cache
	gen   atomic.Uint64
}

// WithCache wraps f with a cache holding at most maxEntries ranges.
func WithCache(f Fetcher, maxEntries int) *CachingFetcher {
	return &CachingFetcher{
		f:     f,
		cache: cache.New(cache.WithMaximumSize(maxEntries)),
	}
}

// Size returns the cached size, asking the wrapped fetcher once.
func (c *CachingFetcher) Size(ctx context.Context) (int64, error) {
	key := sizeKey{gen: c.gen.Load()}
	if v, ok := c.cache.GetIfPresent(key); ok {
		return v.(int64), nil
	}
	size, err := c.f.Size(ctx)
	if err != nil {
		return size, err
	}
	c.cache.Put(key, size)
	return size, nil
}

// FetchRange serves a range from the cache or fetches and stores it.
func (c *CachingFetcher) FetchRange(ctx context.Context, off, n int64) ([]byte, error) {
	key := rangeKey{gen: c.gen.Load(), off: off, n: n}
	if v, ok := c.cache.GetIfPresent(key); ok {
		return v.([]byte), nil
	}
	data, err := c.f.FetchRange(ctx, off, n)
	if err != nil {
		return nil, err
	}
	c.cache.Put(key, data)
	return data, nil
}

// PutRange writes through and empties the cache.
func (c *CachingFetcher) PutRange(ctx context.Context, off int64, p []byte) error {
	defer c.invalidate()
	return c.f.PutRange(ctx, off, p)
}

// Truncate writes through and empties the cache.
func (c *CachingFetcher) Truncate(ctx context.Context, size int64) error {
	defer c.invalidate()
	return c.f.Truncate(ctx, size)
}

// Replace writes through and empties the cache.
func (c *CachingFetcher) Replace(ctx context.Context, data []byte) error {
	defer c.invalidate()
	return c.f.Replace(ctx, data)
}

// Features reports the features of the wrapped fetcher.
func (c *CachingFetcher) Features() Features {
	return c.f.Features()
}

// invalidate moves to a new generation so that no earlier entry is served
// again, then drops the old entries.
func (c *CachingFetcher) invalidate() {
	c.gen.Add(1)
	c.cache.InvalidateAll()
}

// Stats copies the cache statistics into st.
func (c *CachingFetcher) Stats(st *cache.Stats) {
	c.cache.Stats(st)
}

// Close closes the cache and the wrapped fetcher.
func (c *CachingFetcher) Close() error {
	_ = c.cache.Close()
	return closeFetcher(c.f)
}

// Ensure CachingFetcher implements Fetcher
var _ Fetcher = (*CachingFetcher)(nil)
