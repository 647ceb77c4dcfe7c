package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	zlog "github.com/semihalev/zlog/v2"
)

// redisFast is the optional shared fast tier: when l1CacheServers is
// configured, L1 is backed by a Redis client pool instead of an
// in-process shard map, so multiple rbld processes behind the same
// upstream RBL set share cache state. Grounded on the teacher corpus's
// go-redis usage in its proxy/queue caches.
type redisFast struct {
	client *redis.Client
}

// NewRedisFast returns a client for the first address in servers
// (127.0.0.1:6379 if servers is empty); the other addresses are not
// used. go-redis itself pools connections, so a single *redis.Client
// is enough.
func NewRedisFast(servers []string) *redisFast {
	addr := "127.0.0.1:6379"
	if len(servers) > 0 {
		addr = servers[0]
	}

	return &redisFast{client: redis.NewClient(&redis.Options{Addr: addr})}
}

type redisValue struct {
	IP        string `json:"ip"`
	RBLHost   string `json:"rbl_host"`
	Listed    int    `json:"listed"`
	Response  string `json:"response"`
	ErrorKind string `json:"error_kind"`
	TTL       int64  `json:"ttl_ns"`
	CachedAt  int64  `json:"cached_at_unix_ns"`
	ExpiresAt int64  `json:"expires_at_unix_ns"`
}

func toRedisValue(e Entry) redisValue {
	return redisValue{
		IP:        e.IP,
		RBLHost:   e.RBLHost,
		Listed:    int(e.Listed),
		Response:  e.Response,
		ErrorKind: string(e.ErrorKind),
		TTL:       int64(e.TTL),
		CachedAt:  e.CachedAt.UnixNano(),
		ExpiresAt: e.ExpiresAt.UnixNano(),
	}
}

func fromRedisValue(v redisValue) Entry {
	return Entry{
		IP:        v.IP,
		RBLHost:   v.RBLHost,
		Listed:    Classification(v.Listed),
		Response:  v.Response,
		ErrorKind: ErrorKind(v.ErrorKind),
		TTL:       time.Duration(v.TTL),
		CachedAt:  time.Unix(0, v.CachedAt),
		ExpiresAt: time.Unix(0, v.ExpiresAt),
	}
}

func (r *redisFast) redisKey(key uint64) string {
	return "rbld:cache:" + itoa64(key)
}

func itoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (r *redisFast) get(ctx context.Context, key uint64, now time.Time) (Entry, bool) {
	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		return Entry{}, false
	}

	var v redisValue
	if err := json.Unmarshal(data, &v); err != nil {
		return Entry{}, false
	}

	e := fromRedisValue(v)
	if e.Expired(now) {
		return Entry{}, false
	}

	return e, true
}

func (r *redisFast) indexKey(ip string) string {
	return "rbld:cache:ip:" + ip
}

func (r *redisFast) set(ctx context.Context, key uint64, e Entry, ttl time.Duration) {
	data, err := json.Marshal(toRedisValue(e))
	if err != nil {
		return
	}

	rk := r.redisKey(key)

	// Best-effort: a failure is logged here and never surfaces to the caller.
	if err := r.client.Set(ctx, rk, data, ttl).Err(); err != nil {
		zlog.Warn("cache L1 redis write failed, ignoring", "error", err.Error())
	}

	// Indexed by IP so ClearByIP can find every rblHost entry for it
	// without a full keyspace scan. The index's own TTL is refreshed to
	// this entry's ttl each call, so an IP with entries of mixed TTLs
	// can have its index expire while a longer-lived entry survives;
	// that entry then outlives ClearByIP's reach until it expires on
	// its own.
	_ = r.client.SAdd(ctx, r.indexKey(e.IP), rk).Err()
	_ = r.client.Expire(ctx, r.indexKey(e.IP), ttl).Err()
}

func (r *redisFast) remove(ctx context.Context, key uint64) {
	_ = r.client.Del(ctx, r.redisKey(key)).Err()
}

// removeByIP deletes every indexed entry for ip and returns the count
// removed.
func (r *redisFast) removeByIP(ctx context.Context, ip string) int {
	members, err := r.client.SMembers(ctx, r.indexKey(ip)).Result()
	if err != nil || len(members) == 0 {
		return 0
	}

	n, err := r.client.Del(ctx, members...).Result()
	if err != nil {
		return 0
	}

	_ = r.client.Del(ctx, r.indexKey(ip)).Err()

	return int(n)
}

// removeAll deletes every rbld cache key via SCAN and returns the
// count removed.
func (r *redisFast) removeAll(ctx context.Context) int {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, "rbld:cache:*", 200).Result()
		if err != nil {
			break
		}

		if len(keys) > 0 {
			if n, err := r.client.Del(ctx, keys...).Result(); err == nil {
				removed += int(n)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return removed
}

func (r *redisFast) close() error {
	return r.client.Close()
}
