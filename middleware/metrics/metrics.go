package metrics

import (
	"context"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blockdns/rbld/middleware"
)

// Metrics records per-query counters keyed by type/rcode, grounded on
// the teacher's middleware/metrics handler.
type Metrics struct {
	queries *prometheus.CounterVec

	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CacheSize       *prometheus.GaugeVec
	AggregateListed prometheus.Counter
	AggregateRatio  prometheus.Gauge
	UpstreamErrors  *prometheus.CounterVec
}

// New registers every gauge/counter and returns the handler.
func New() *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rbld_dns_queries_total",
			Help: "DNS queries processed, by question type and response code.",
		}, []string{"qtype", "rcode"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rbld_cache_hits_total",
			Help: "Cache lookups served from either tier without an upstream query.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rbld_cache_misses_total",
			Help: "Cache lookups that required an upstream RBL query.",
		}),
		CacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rbld_cache_size",
			Help: "Entry count per cache tier.",
		}, []string{"tier"}),
		AggregateListed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rbld_aggregate_listed_total",
			Help: "Aggregate queries that resolved with at least one listed RBL.",
		}),
		AggregateRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rbld_aggregate_checked_ratio",
			Help: "Most recent aggregate query's completed/total RBL ratio.",
		}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rbld_upstream_errors_total",
			Help: "Upstream RBL lookup failures, by error kind.",
		}, []string{"kind"}),
	}

	prometheus.MustRegister(m.queries, m.CacheHits, m.CacheMisses, m.CacheSize,
		m.AggregateListed, m.AggregateRatio, m.UpstreamErrors)

	return m
}

// CacheHit implements singlerbl.CacheRecorder.
func (m *Metrics) CacheHit() { m.CacheHits.Inc() }

// CacheMiss implements singlerbl.CacheRecorder.
func (m *Metrics) CacheMiss() { m.CacheMisses.Inc() }

// UpstreamError implements singlerbl.ErrorRecorder.
func (m *Metrics) UpstreamError(kind string) {
	m.UpstreamErrors.WithLabelValues(kind).Inc()
}

// AggregateCompleted implements aggregate.Recorder.
func (m *Metrics) AggregateCompleted(listed bool, checkedRatio float64) {
	if listed {
		m.AggregateListed.Inc()
	}
	m.AggregateRatio.Set(checkedRatio)
}

// Name returns the middleware name.
func (m *Metrics) Name() string { return "metrics" }

// ServeDNS implements middleware.Handler: it runs the rest of the
// chain first, then records the outcome, the way the teacher's
// metrics handler wraps dc.NextDNS().
func (m *Metrics) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	ch.Next(ctx)

	if !ch.Writer.Written() {
		return
	}

	m.queries.With(prometheus.Labels{
		"qtype": dns.TypeToString[ch.Request.Question[0].Qtype],
		"rcode": dns.RcodeToString[ch.Writer.Rcode()],
	}).Inc()
}
