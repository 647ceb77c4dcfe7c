package recovery

import (
	"context"
	"os"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdns/rbld/middleware"
	"github.com/blockdns/rbld/mock"
)

type panicHandler struct{}

func (panicHandler) Name() string { return "panic" }

func (panicHandler) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	panic("boom")
}

func Test_Recovery_Name(t *testing.T) {
	r := New()
	assert.Equal(t, "recovery", r.Name())
}

func Test_Recovery_ServeDNS_CatchesPanicFromNextHandler(t *testing.T) {
	stderr := os.Stderr
	defer func() { os.Stderr = stderr }()
	os.Stderr, _ = os.Open(os.DevNull)

	r := New()
	ch := middleware.NewChain([]middleware.Handler{r, panicHandler{}})

	req := new(dns.Msg)
	req.SetQuestion("test.com.", dns.TypeA)

	w := mock.NewWriter("udp", "127.0.0.1:0")
	ch.Reset(w, req)
	ch.Next(context.Background())

	require.True(t, w.Written())
	assert.Equal(t, dns.RcodeServerFailure, w.Rcode())
}

func Test_Recovery_ServeDNS_NoPanic_PassesThrough(t *testing.T) {
	r := New()
	ch := middleware.NewChain([]middleware.Handler{r})

	req := new(dns.Msg)
	req.SetQuestion("test.com.", dns.TypeA)

	w := mock.NewWriter("udp", "127.0.0.1:0")
	ch.Reset(w, req)
	ch.Next(context.Background())

	assert.False(t, w.Written())
}
