package remote

import (
	"context"
	"sync"
	"time"
)

// WithRateLimit wraps f so that the bytes it moves in either direction do
// not exceed bytesPerSecond. Every stream using the returned fetcher shares
// one budget. A rate of 0 or less returns f unchanged.
func WithRateLimit(f Fetcher, bytesPerSecond int64) Fetcher {
	bucket := newTokenBucket(bytesPerSecond)
	if bucket == nil {
		return f
	}
	return &rateLimitedFetcher{f: f, bucket: bucket}
}

type rateLimitedFetcher struct {
	f      Fetcher
	bucket *tokenBucket
}

func (r *rateLimitedFetcher) Size(ctx context.Context) (int64, error) {
	return r.f.Size(ctx)
}

// FetchRange charges for n bytes before fetching and returns the tokens
// for any bytes that did not arrive. Reads to the end are charged after
// the fact.
func (r *rateLimitedFetcher) FetchRange(ctx context.Context, off, n int64) ([]byte, error) {
	if n > 0 {
		if err := r.bucket.waitN(ctx, n); err != nil {
			return nil, err
		}
	}
	data, err := r.f.FetchRange(ctx, off, n)
	switch {
	case n > 0:
		r.bucket.returnTokens(n - int64(len(data)))
	case len(data) > 0:
		if werr := r.bucket.waitN(ctx, int64(len(data))); werr != nil && err == nil {
			err = werr
		}
	}
	return data, err
}

func (r *rateLimitedFetcher) PutRange(ctx context.Context, off int64, p []byte) error {
	if err := r.bucket.waitN(ctx, int64(len(p))); err != nil {
		return err
	}
	return r.f.PutRange(ctx, off, p)
}

func (r *rateLimitedFetcher) Truncate(ctx context.Context, size int64) error {
	return r.f.Truncate(ctx, size)
}

func (r *rateLimitedFetcher) Replace(ctx context.Context, data []byte) error {
	if err := r.bucket.waitN(ctx, int64(len(data))); err != nil {
		return err
	}
	return r.f.Replace(ctx, data)
}

func (r *rateLimitedFetcher) Features() Features {
	return r.f.Features()
}

func (r *rateLimitedFetcher) Close() error {
	return closeFetcher(r.f)
}

// tokenBucket implements a token bucket rate limiter.
// It's safe for concurrent use.
type tokenBucket struct {
	rate       int64 // bytes per second
	tokens     int64 // current available tokens
	maxTokens  int64 // maximum tokens (burst size)
	lastRefill time.Time
	mu         sync.Mutex
}

// newTokenBucket creates a new token bucket with the given rate.
// rate is in bytes per second. Burst size is set to 1 second worth of tokens.
func newTokenBucket(bytesPerSecond int64) *tokenBucket {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &tokenBucket{
		rate:       bytesPerSecond,
		tokens:     bytesPerSecond, // Start with full bucket
		maxTokens:  bytesPerSecond, // 1 second burst
		lastRefill: time.Now(),
	}
}

// waitN consumes n tokens, in chunks no larger than the burst size.
func (tb *tokenBucket) waitN(ctx context.Context, n int64) error {
	if tb == nil {
		return nil
	}
	for n > 0 {
		chunk := n
		if chunk > tb.maxTokens {
			chunk = tb.maxTokens
		}
		if err := tb.wait(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// wait blocks until n tokens are available and consumes them.
// n must not exceed maxTokens.
func (tb *tokenBucket) wait(ctx context.Context, n int64) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	for tb.tokens < n {
		deficit := n - tb.tokens
		waitDuration := time.Duration(deficit) * time.Second / time.Duration(tb.rate)

		// Release lock while waiting
		tb.mu.Unlock()
		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			tb.mu.Lock()
			return ctx.Err()
		case <-timer.C:
		}
		tb.mu.Lock()

		tb.refill()
	}

	tb.tokens -= n
	return nil
}

// returnTokens returns unused tokens to the bucket.
func (tb *tokenBucket) returnTokens(n int64) {
	if tb == nil || n <= 0 {
		return
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens += n
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
}

// refill adds tokens based on elapsed time since last refill.
// Must be called with mu held.
func (tb *tokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	tb.lastRefill = now

	newTokens := int64(elapsed.Seconds() * float64(tb.rate))
	tb.tokens += newTokens
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
}
