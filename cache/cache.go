package cache

import (
	"context"
	"time"

	zlog "github.com/semihalev/zlog/v2"
)

// Cache is the two-tier TTL cache described in spec.md §4.B: an
// in-process (or optionally Redis-shared) fast tier backfilled from,
// and written through to, a durable store that remains authoritative
// across restarts.
type Cache struct {
	l1    *l1
	redis *redisFast // non-nil when l1CacheServers is configured; takes precedence over l1
	store Store      // nil means no durable tier (tests only — production always configures one)

	now func() time.Time
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithRedisFast backs the fast tier with Redis instead of the
// in-process shard map.
func WithRedisFast(servers []string) Option {
	return func(c *Cache) {
		c.redis = NewRedisFast(servers)
	}
}

// New builds a Cache over the given durable store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		l1:    newL1(),
		store: store,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get implements the read protocol of spec.md §4.B: L1 hit wins
// immediately; otherwise fall through to L2 and backfill L1 with the
// remaining TTL on a hit; otherwise a miss.
func (c *Cache) Get(ctx context.Context, ip, rblHost string) (Entry, bool) {
	canon := CanonicalIP(ip)
	if canon == "" {
		return Entry{}, false
	}

	now := c.now()
	key := Key(canon, rblHost)

	if c.redis != nil {
		if e, ok := c.redis.get(ctx, key, now); ok {
			return e, true
		}
	} else if e, ok := c.l1.get(key, now); ok {
		return e, true
	}

	if c.store == nil {
		return Entry{}, false
	}

	e, ok, err := c.store.Get(ctx, canon, rblHost)
	if err != nil {
		zlog.Warn("cache L2 read failed, degrading to miss", "ip", canon, "rblHost", rblHost, "error", err.Error())
		return Entry{}, false
	}
	if !ok || e.Expired(now) {
		return Entry{}, false
	}

	remaining := e.ExpiresAt.Sub(now)
	c.backfillL1(ctx, key, e, remaining)

	return e, true
}

func (c *Cache) backfillL1(ctx context.Context, key uint64, e Entry, remaining time.Duration) {
	if remaining <= 0 {
		return
	}

	if c.redis != nil {
		c.redis.set(ctx, key, e, remaining)
		return
	}

	c.l1.set(key, e)
}

// Put implements the write protocol of spec.md §4.B: best-effort L1
// set, then durable L2 upsert. An L1 failure never prevents the write
// from completing; an L2 failure is logged and swallowed.
func (c *Cache) Put(ctx context.Context, ip, rblHost string, listed Classification, response string, errKind ErrorKind, ttl time.Duration) {
	canon := CanonicalIP(ip)
	if canon == "" {
		return
	}

	now := c.now()
	e := NewEntry(canon, rblHost, listed, response, errKind, ttl, now)
	key := Key(canon, rblHost)

	func() {
		defer func() {
			if r := recover(); r != nil {
				zlog.Warn("cache L1 write panicked, ignoring", "recover", r)
			}
		}()

		if c.redis != nil {
			c.redis.set(ctx, key, e, ttl)
		} else {
			c.l1.set(key, e)
		}
	}()

	if c.store == nil {
		return
	}

	if err := c.store.Put(ctx, e); err != nil {
		zlog.Warn("cache L2 write failed, swallowed", "ip", canon, "rblHost", rblHost, "error", err.Error())
	}
}

// CleanExpired sweeps both tiers for expired entries and returns the
// total count removed.
func (c *Cache) CleanExpired(ctx context.Context) int {
	now := c.now()
	removed := c.l1.cleanExpired(now)

	if c.store != nil {
		n, err := c.store.CleanExpired(ctx, now)
		if err != nil {
			zlog.Warn("cache L2 sweep failed", "error", err.Error())
		} else {
			removed += n
		}
	}

	return removed
}

// ClearAll removes every entry from both tiers.
func (c *Cache) ClearAll(ctx context.Context) int {
	removed := c.l1.clearAll()

	if c.redis != nil {
		removed += c.redis.removeAll(ctx)
	}

	if c.store != nil {
		n, err := c.store.DeleteAll(ctx)
		if err != nil {
			zlog.Warn("cache L2 clear failed", "error", err.Error())
		} else {
			removed += n
		}
	}

	return removed
}

// ClearByIP removes every entry whose key's IP canonicalises to ip,
// regardless of the lexical form it was originally stored under.
func (c *Cache) ClearByIP(ctx context.Context, ip string) int {
	canon := CanonicalIP(ip)
	if canon == "" {
		return 0
	}

	removed := 0
	now := c.now()

	// Collect first, remove after: forEach holds each shard's read lock
	// while calling fn, so removing inside the callback would deadlock.
	var keys []uint64
	c.l1.forEach(now, func(key uint64, e Entry) {
		if e.IP == canon {
			keys = append(keys, key)
		}
	})

	for _, key := range keys {
		c.l1.remove(key)
		removed++
	}

	if c.redis != nil {
		removed += c.redis.removeByIP(ctx, canon)
	}

	if c.store != nil {
		n, err := c.store.DeleteByIP(ctx, canon)
		if err != nil {
			zlog.Warn("cache L2 clearByIP failed", "ip", canon, "error", err.Error())
		} else {
			removed += n
		}
	}

	return removed
}

// Stats reports aggregate counts across the durable tier, which is
// authoritative for total/valid/expired bookkeeping.
func (c *Cache) Stats(ctx context.Context) Stats {
	if c.store == nil {
		return c.l1Stats()
	}

	s, err := c.store.Stats(ctx, c.now())
	if err != nil {
		zlog.Warn("cache L2 stats failed, falling back to L1", "error", err.Error())
		return c.l1Stats()
	}

	return s
}

func (c *Cache) l1Stats() Stats {
	var s Stats
	now := c.now()

	c.l1.forEach(now, func(_ uint64, e Entry) {
		s.Total++
		s.Valid++
		switch e.Listed {
		case Listed:
			s.Listed++
		case Error:
			s.Errors++
		default:
			s.NotListed++
		}
	})

	return s
}
