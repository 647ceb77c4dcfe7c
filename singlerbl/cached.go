package singlerbl

import (
	"context"

	"github.com/blockdns/rbld/cache"
)

// Lookuper is satisfied by Resolver; CachedResolver depends on it
// rather than the concrete type so tests can substitute a fake
// upstream without a real DNS server.
type Lookuper interface {
	Lookup(ctx context.Context, ip, rblHost string) Result
}

// CacheRecorder receives cache hit/miss counts. metrics.Metrics
// implements it; tests may pass nil.
type CacheRecorder interface {
	CacheHit()
	CacheMiss()
}

// CachedResolver wraps a Lookuper with the cache-aware variant spec.md
// §4.D describes: a cache hit returns immediately with responseTime=0,
// fromCache=true; a miss performs the upstream lookup and fires off a
// cache write without waiting on it.
type CachedResolver struct {
	resolver Lookuper
	cache    *cache.Cache
	recorder CacheRecorder
}

// NewCached returns a CachedResolver. recorder may be nil, in which
// case hits and misses are not counted.
func NewCached(resolver Lookuper, c *cache.Cache, recorder CacheRecorder) *CachedResolver {
	return &CachedResolver{resolver: resolver, cache: c, recorder: recorder}
}

// Check consults the cache first; on miss it queries upstream and
// writes the result back to the cache in a detached goroutine so the
// caller never waits on the durable write.
func (c *CachedResolver) Check(ctx context.Context, ip, rblHost string) Result {
	if e, ok := c.cache.Get(ctx, ip, rblHost); ok {
		if c.recorder != nil {
			c.recorder.CacheHit()
		}

		return Result{
			Listed:    e.Listed,
			Response:  e.Response,
			ErrorKind: e.ErrorKind,
			TTL:       e.TTL,
			FromCache: true,
		}
	}

	if c.recorder != nil {
		c.recorder.CacheMiss()
	}

	result := c.resolver.Lookup(ctx, ip, rblHost)

	go c.cache.Put(context.WithoutCancel(ctx), ip, rblHost, result.Listed, result.Response, result.ErrorKind, result.TTL)

	return result
}
