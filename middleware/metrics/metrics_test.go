package metrics

import (
	"context"
	"sync"
	"testing"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdns/rbld/middleware"
	"github.com/blockdns/rbld/mock"
)

// prometheus' default registry panics on a second registration of the
// same metric name, so every test in this file shares one instance.
var (
	sharedOnce sync.Once
	shared     *Metrics
)

func testMetrics() *Metrics {
	sharedOnce.Do(func() { shared = New() })
	return shared
}

type okHandler struct{}

func (okHandler) Name() string { return "ok" }

func (okHandler) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	resp := new(dns.Msg)
	resp.SetReply(ch.Request)
	resp.Rcode = dns.RcodeSuccess
	_ = ch.Writer.WriteMsg(resp)
	ch.Next(ctx)
}

func Test_Metrics_Name(t *testing.T) {
	m := testMetrics()
	assert.Equal(t, "metrics", m.Name())
}

func Test_Metrics_ServeDNS_RecordsCompletedQuery(t *testing.T) {
	m := testMetrics()
	ch := middleware.NewChain([]middleware.Handler{okHandler{}, m})

	req := new(dns.Msg)
	req.SetQuestion("test.com.", dns.TypeA)

	before := testutil.ToFloat64(m.queries.WithLabelValues("A", "NOERROR"))

	w := mock.NewWriter("udp", "127.0.0.1:0")
	ch.Reset(w, req)
	ch.Next(context.Background())

	require.True(t, w.Written())
	assert.Equal(t, dns.RcodeSuccess, w.Rcode())
	assert.Equal(t, before+1, testutil.ToFloat64(m.queries.WithLabelValues("A", "NOERROR")))
}

func Test_Metrics_CacheHit_IncrementsCacheHits(t *testing.T) {
	m := testMetrics()
	before := testutil.ToFloat64(m.CacheHits)

	m.CacheHit()

	assert.Equal(t, before+1, testutil.ToFloat64(m.CacheHits))
}

func Test_Metrics_CacheMiss_IncrementsCacheMisses(t *testing.T) {
	m := testMetrics()
	before := testutil.ToFloat64(m.CacheMisses)

	m.CacheMiss()

	assert.Equal(t, before+1, testutil.ToFloat64(m.CacheMisses))
}

func Test_Metrics_UpstreamError_IncrementsByKind(t *testing.T) {
	m := testMetrics()
	before := testutil.ToFloat64(m.UpstreamErrors.WithLabelValues("timeout"))

	m.UpstreamError("timeout")

	assert.Equal(t, before+1, testutil.ToFloat64(m.UpstreamErrors.WithLabelValues("timeout")))
}

func Test_Metrics_AggregateCompleted_Listed_IncrementsAndSetsRatio(t *testing.T) {
	m := testMetrics()
	before := testutil.ToFloat64(m.AggregateListed)

	m.AggregateCompleted(true, 0.75)

	assert.Equal(t, before+1, testutil.ToFloat64(m.AggregateListed))
	assert.Equal(t, 0.75, testutil.ToFloat64(m.AggregateRatio))
}

func Test_Metrics_AggregateCompleted_NotListed_LeavesCounterUnchanged(t *testing.T) {
	m := testMetrics()
	before := testutil.ToFloat64(m.AggregateListed)

	m.AggregateCompleted(false, 1.0)

	assert.Equal(t, before, testutil.ToFloat64(m.AggregateListed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AggregateRatio))
}

func Test_Metrics_ServeDNS_SkipsUnwrittenResponse(t *testing.T) {
	m := testMetrics()
	ch := middleware.NewChain([]middleware.Handler{})

	req := new(dns.Msg)
	req.SetQuestion("test.com.", dns.TypeA)

	w := mock.NewWriter("udp", "127.0.0.1:0")
	ch.Reset(w, req)

	m.ServeDNS(context.Background(), ch)
	assert.False(t, w.Written())
}
