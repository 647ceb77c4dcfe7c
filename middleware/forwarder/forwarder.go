package forwarder

import (
	"context"
	"time"

	"github.com/miekg/dns"
	zlog "github.com/semihalev/zlog/v2"
)

// Forwarder passes queries for names outside every configured RBL
// zone on to a single upstream recursive resolver, grounded on the
// teacher's forwarder middleware but trimmed to one server and one
// deadline rather than a fallback list.
type Forwarder struct {
	upstream string
	timeout  time.Duration
	client   *dns.Client
}

// New returns a Forwarder that queries upstream with the given
// per-query timeout.
func New(upstream string, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Forwarder{
		upstream: upstream,
		timeout:  timeout,
		client:   &dns.Client{Timeout: timeout},
	}
}

// Forward relays req to the upstream resolver and returns its answer,
// or a SERVFAIL of its own construction if the upstream is unreachable
// or errors.
func (f *Forwarder) Forward(ctx context.Context, req *dns.Msg) *dns.Msg {
	fReq := req.Copy()
	fReq.Id = dns.Id()

	resp, _, err := f.client.ExchangeContext(ctx, fReq, f.upstream)
	if err != nil {
		zlog.Warn("forwarder query failed", "query", req.Question[0].Name, "upstream", f.upstream, "error", err.Error())
		return servfail(req)
	}

	resp.Id = req.Id

	return resp
}

func servfail(req *dns.Msg) *dns.Msg {
	m := new(dns.Msg)
	m.SetRcode(req, dns.RcodeServerFailure)
	return m
}
