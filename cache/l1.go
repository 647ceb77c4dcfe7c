package cache

import "time"

// l1 is the process-local, in-memory fast tier: a sharded map keyed by
// xxhash(ip, rblHost) of Entry values, each carrying its own absolute
// expiry. Shards bound lock contention the way the teacher's cache
// package bounds it for its DNS-message cache.
type l1 struct {
	shards [shardSize]*shard
}

func newL1() *l1 {
	c := &l1{}
	for i := range c.shards {
		c.shards[i] = newShard(0) // size 0: unbounded, L2 is authoritative for eviction policy
	}
	return c
}

func (c *l1) shardFor(key uint64) *shard {
	return c.shards[key%uint64(len(c.shards))]
}

// get returns the entry for key if present and not expired as of now.
func (c *l1) get(key uint64, now time.Time) (Entry, bool) {
	v, ok := c.shardFor(key).Get(key)
	if !ok {
		return Entry{}, false
	}

	e := v.(Entry)
	if e.Expired(now) {
		return Entry{}, false
	}

	return e, true
}

// set upserts an entry. Best-effort: never blocks on anything but the
// shard's own mutex.
func (c *l1) set(key uint64, e Entry) {
	c.shardFor(key).Add(key, e)
}

func (c *l1) remove(key uint64) {
	c.shardFor(key).Remove(key)
}

// cleanExpired scans every shard and evicts entries expired as of now,
// returning the count removed.
func (c *l1) cleanExpired(now time.Time) int {
	removed := 0

	for _, s := range c.shards {
		s.Lock()
		for k, v := range s.items {
			if v.(Entry).Expired(now) {
				delete(s.items, k)
				removed++
			}
		}
		s.Unlock()
	}

	return removed
}

// clearAll removes every entry, returning the count removed.
func (c *l1) clearAll() int {
	removed := 0

	for _, s := range c.shards {
		s.Lock()
		removed += len(s.items)
		s.items = make(map[uint64]interface{})
		s.Unlock()
	}

	return removed
}

// forEach calls fn for every live (not expired) entry.
func (c *l1) forEach(now time.Time, fn func(key uint64, e Entry)) {
	for _, s := range c.shards {
		s.RLock()
		for k, v := range s.items {
			e := v.(Entry)
			if !e.Expired(now) {
				fn(k, e)
			}
		}
		s.RUnlock()
	}
}
