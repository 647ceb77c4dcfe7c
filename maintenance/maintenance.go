// Package maintenance runs the periodic background jobs described in
// spec.md §4.I: an expiry sweep of the cache every few minutes and a
// slower stats snapshot that feeds the metrics gauges, grounded on the
// teacher's circuit breaker cleanup ticker.
package maintenance

import (
	"context"
	"time"

	zlog "github.com/semihalev/zlog/v2"

	"github.com/blockdns/rbld/cache"
	"github.com/blockdns/rbld/middleware/metrics"
)

// DefaultSweepInterval is how often expired cache entries are purged.
const DefaultSweepInterval = 5 * time.Minute

// DefaultStatsInterval is how often the cache stats gauges refresh.
const DefaultStatsInterval = time.Hour

// Runner drives both background jobs until Stop is called.
type Runner struct {
	cache   *cache.Cache
	metrics *metrics.Metrics

	sweepInterval time.Duration
	statsInterval time.Duration

	stopCh chan struct{}
}

// New returns a Runner. Pass 0 for either interval to use its default.
func New(c *cache.Cache, m *metrics.Metrics, sweepInterval, statsInterval time.Duration) *Runner {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	if statsInterval <= 0 {
		statsInterval = DefaultStatsInterval
	}

	return &Runner{
		cache:         c,
		metrics:       m,
		sweepInterval: sweepInterval,
		statsInterval: statsInterval,
		stopCh:        make(chan struct{}),
	}
}

// SweepInterval returns the configured expiry sweep interval.
func (r *Runner) SweepInterval() time.Duration { return r.sweepInterval }

// StatsInterval returns the configured stats snapshot interval.
func (r *Runner) StatsInterval() time.Duration { return r.statsInterval }

// Run blocks, driving both tickers until ctx is cancelled or Stop is
// called.
func (r *Runner) Run(ctx context.Context) {
	sweep := time.NewTicker(r.sweepInterval)
	defer sweep.Stop()

	stats := time.NewTicker(r.statsInterval)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return

		case <-sweep.C:
			n := r.cache.CleanExpired(ctx)
			if n > 0 {
				zlog.Info("Cache sweep removed expired entries", "count", n)
			}

		case <-stats.C:
			r.refreshStats(ctx)
		}
	}
}

func (r *Runner) refreshStats(ctx context.Context) {
	s := r.cache.Stats(ctx)

	zlog.Info("Cache stats", "total", s.Total, "valid", s.Valid, "expired", s.Expired,
		"listed", s.Listed, "notListed", s.NotListed, "errors", s.Errors)

	if r.metrics == nil {
		return
	}

	r.metrics.CacheSize.WithLabelValues("durable").Set(float64(s.Total))
}

// Stop stops the runner. Safe to call once.
func (r *Runner) Stop() {
	close(r.stopCh)
}
