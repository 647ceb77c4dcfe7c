// Package cache implements the two-tier TTL cache for DNSBL lookup
// results, keyed by the canonical (client IP, RBL host) pair.
package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/blockdns/rbld/ipnet"
)

// keyBuffer holds a reusable buffer for key generation.
type keyBuffer struct {
	buf [256]byte // fixed-size array reused through keyBufferPool to avoid per-call allocations
}

var keyBufferPool = sync.Pool{
	New: func() any {
		return new(keyBuffer)
	},
}

// Key generates a cache key for a (ip, rblHost) pair. Key hashes ip as
// given; callers pass it through CanonicalIP first so that two lexical
// forms of the same address collide, per the cache entry invariant.
func Key(ip, rblHost string) uint64 {
	kb := keyBufferPool.Get().(*keyBuffer)
	defer keyBufferPool.Put(kb)

	buf := kb.buf[:0]
	buf = append(buf, ip...)
	buf = append(buf, 0) // separator, avoids "1.2.3.4"+"a.b" colliding with "1.2.3." + "4a.b"
	buf = append(buf, rblHost...)

	return xxhash.Sum64(buf)
}

// CanonicalIP returns the canonical string form of the dotted or
// colon-hex address s, or "" if s does not parse.
func CanonicalIP(s string) string {
	ip := parseIP(s)
	if ip == nil {
		return ""
	}
	return ipnet.Canonical(ip)
}
