package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory Store used to exercise Cache without
// a real Postgres connection.
type memStore struct {
	mu   sync.Mutex
	rows map[string]Entry
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]Entry)}
}

func (m *memStore) k(ip, rblHost string) string { return ip + "\x00" + rblHost }

func (m *memStore) Get(_ context.Context, ip, rblHost string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[m.k(ip, rblHost)]
	return e, ok, nil
}

func (m *memStore) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[m.k(e.IP, e.RBLHost)] = e
	return nil
}

func (m *memStore) DeleteByIP(_ context.Context, ip string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.rows {
		if e.IP == ip {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.rows)
	m.rows = make(map[string]Entry)
	return n, nil
}

func (m *memStore) CleanExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.rows {
		if e.Expired(now) {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Stats(_ context.Context, now time.Time) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Stats
	s.Total = len(m.rows)
	for _, e := range m.rows {
		if e.Expired(now) {
			s.Expired++
			continue
		}
		s.Valid++
		switch e.Listed {
		case Listed:
			s.Listed++
		case Error:
			s.Errors++
		default:
			s.NotListed++
		}
	}
	return s, nil
}

func Test_Cache_PutThenGet_WithinTTL(t *testing.T) {
	c := New(newMemStore())
	ctx := context.Background()

	c.Put(ctx, "127.0.0.2", "zen.spamhaus.org", Listed, "127.0.0.2", "", 5*time.Minute)

	e, ok := c.Get(ctx, "127.0.0.2", "zen.spamhaus.org")
	require.True(t, ok)
	assert.Equal(t, Listed, e.Listed)
	assert.Equal(t, "127.0.0.2", e.Response)
}

func Test_Cache_Get_NeverReturnsExpiredEntry(t *testing.T) {
	c := New(newMemStore())
	ctx := context.Background()

	c.Put(ctx, "10.0.0.1", "zen.spamhaus.org", NotListed, "", "", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "10.0.0.1", "zen.spamhaus.org")
	assert.False(t, ok)
}

func Test_Cache_Get_FallsThroughToL2AndBackfillsL1(t *testing.T) {
	store := newMemStore()
	c := New(store)
	ctx := context.Background()

	// Write directly to L2, bypassing L1, to simulate an L1 miss after restart.
	require.NoError(t, store.Put(ctx, NewEntry("8.8.8.8", "zen.spamhaus.org", NotListed, "", "", time.Minute, time.Now())))

	e, ok := c.Get(ctx, "8.8.8.8", "zen.spamhaus.org")
	require.True(t, ok)
	assert.Equal(t, NotListed, e.Listed)

	// Now that L1 was backfilled, an L2 wipe should not affect the read.
	_, _ = store.DeleteAll(ctx)
	e2, ok2 := c.Get(ctx, "8.8.8.8", "zen.spamhaus.org")
	require.True(t, ok2)
	assert.Equal(t, NotListed, e2.Listed)
}

func Test_Cache_Get_CanonicalizesLexicalForms(t *testing.T) {
	c := New(newMemStore())
	ctx := context.Background()

	c.Put(ctx, "127.0.0.2", "zen.spamhaus.org", Listed, "127.0.0.2", "", time.Minute)

	e, ok := c.Get(ctx, "::ffff:127.0.0.2", "zen.spamhaus.org")
	require.True(t, ok)
	assert.Equal(t, Listed, e.Listed)
}

func Test_Cache_ClearByIP_RemovesAllRBLsForThatIP(t *testing.T) {
	c := New(newMemStore())
	ctx := context.Background()

	c.Put(ctx, "1.2.3.4", "zen.spamhaus.org", Listed, "1.2.3.4", "", time.Minute)
	c.Put(ctx, "1.2.3.4", "b.barracudacentral.org", NotListed, "", "", time.Minute)
	c.Put(ctx, "5.6.7.8", "zen.spamhaus.org", NotListed, "", "", time.Minute)

	removed := c.ClearByIP(ctx, "1.2.3.4")
	assert.Equal(t, 4, removed) // 2 from L1 + 2 from L2

	_, ok := c.Get(ctx, "1.2.3.4", "zen.spamhaus.org")
	assert.False(t, ok)

	_, ok2 := c.Get(ctx, "5.6.7.8", "zen.spamhaus.org")
	assert.True(t, ok2)
}

func Test_Cache_Put_IsIdempotent(t *testing.T) {
	c := New(newMemStore())
	ctx := context.Background()

	c.Put(ctx, "9.9.9.9", "zen.spamhaus.org", Listed, "127.0.0.4", "", time.Minute)
	c.Put(ctx, "9.9.9.9", "zen.spamhaus.org", Listed, "127.0.0.4", "", time.Minute)

	stats := c.Stats(ctx)
	assert.Equal(t, 1, stats.Total)
}

func Test_Cache_CleanExpired_RemovesOnlyExpired(t *testing.T) {
	c := New(newMemStore())
	ctx := context.Background()

	c.Put(ctx, "1.1.1.1", "zen.spamhaus.org", NotListed, "", "", time.Millisecond)
	c.Put(ctx, "2.2.2.2", "zen.spamhaus.org", NotListed, "", "", time.Hour)
	time.Sleep(5 * time.Millisecond)

	removed := c.CleanExpired(ctx)
	assert.GreaterOrEqual(t, removed, 1)

	_, ok := c.Get(ctx, "2.2.2.2", "zen.spamhaus.org")
	assert.True(t, ok)
}

func Test_Cache_Get_UnparsableIP_IsMiss(t *testing.T) {
	c := New(newMemStore())
	ctx := context.Background()

	_, ok := c.Get(ctx, "not-an-ip", "zen.spamhaus.org")
	assert.False(t, ok)
}

func Test_Cache_WithNilStore_StillServesFromL1(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	c.Put(ctx, "3.3.3.3", "zen.spamhaus.org", Listed, "127.0.0.2", "", time.Minute)

	e, ok := c.Get(ctx, "3.3.3.3", "zen.spamhaus.org")
	require.True(t, ok)
	assert.Equal(t, Listed, e.Listed)
}
