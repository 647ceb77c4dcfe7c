package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/blockdns/rbld/cache"
	"github.com/blockdns/rbld/middleware/metrics"
)

func Test_New_UsesDefaultsWhenZero(t *testing.T) {
	r := New(cache.New(nil), nil, 0, 0)
	assert.Equal(t, DefaultSweepInterval, r.SweepInterval())
	assert.Equal(t, DefaultStatsInterval, r.StatsInterval())
}

func Test_New_HonoursExplicitIntervals(t *testing.T) {
	r := New(cache.New(nil), nil, time.Minute, 10*time.Minute)
	assert.Equal(t, time.Minute, r.SweepInterval())
	assert.Equal(t, 10*time.Minute, r.StatsInterval())
}

func Test_Runner_Run_ExitsOnContextCancel(t *testing.T) {
	r := New(cache.New(nil), nil, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}

func Test_Runner_Run_ExitsOnStop(t *testing.T) {
	r := New(cache.New(nil), nil, time.Hour, time.Hour)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	r.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}

func Test_Runner_RefreshStats_UpdatesCacheSizeGauge(t *testing.T) {
	c := cache.New(nil)
	c.Put(context.Background(), "127.0.0.2", "zen.spamhaus.org.", cache.Listed, "127.0.0.2", "", time.Minute)

	m := metrics.New()
	r := New(c, m, time.Hour, time.Hour)

	r.refreshStats(context.Background())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheSize.WithLabelValues("durable")))
}
