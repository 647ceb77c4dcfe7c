// Package singlerbl implements the single-RBL reverse-lookup query
// described in spec.md §4.D: compose a reversed-IP query name, issue
// an upstream A-record lookup, and classify the result.
package singlerbl

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/miekg/dns"
	zlog "github.com/semihalev/zlog/v2"

	"github.com/blockdns/rbld/cache"
	"github.com/blockdns/rbld/ipnet"
)

const (
	defaultListedTTL    = 3600 * time.Second
	defaultNotListedTTL = 3600 * time.Second
	defaultErrorTTL     = 300 * time.Second
)

// ErrorRecorder receives upstream failure counts, by error kind.
// metrics.Metrics implements it; tests may pass nil.
type ErrorRecorder interface {
	UpstreamError(kind string)
}

// Result is the classified outcome of a single-RBL lookup.
type Result struct {
	Listed       cache.Classification
	Response     string // first A record, set iff Listed == cache.Listed
	ErrorKind    cache.ErrorKind
	TTL          time.Duration
	ResponseTime time.Duration
	FromCache    bool
}

// Resolver issues upstream A-record queries against RBL hosts over a
// shared dns.Client, grounded on the teacher's forwarder use of
// dns.Client.ExchangeContext.
type Resolver struct {
	client   *dns.Client
	servers  []string
	recorder ErrorRecorder
}

// New returns a Resolver that queries the given upstream DNS servers
// (tried in order) with the given per-lookup timeout. recorder may be
// nil, in which case upstream failures are not counted.
func New(servers []string, timeout time.Duration, recorder ErrorRecorder) *Resolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Resolver{
		client:   &dns.Client{Timeout: timeout},
		servers:  servers,
		recorder: recorder,
	}
}

// Lookup performs steps 1-4 of spec.md §4.D directly against upstream,
// bypassing the cache.
func (r *Resolver) Lookup(ctx context.Context, ip, rblHost string) Result {
	start := time.Now()

	parsed := net.ParseIP(ip)
	if parsed == nil {
		r.record(cache.ErrInvalidQuery)
		return Result{Listed: cache.Error, ErrorKind: cache.ErrInvalidQuery, TTL: defaultErrorTTL}
	}

	qname := dns.Fqdn(ipnet.Reverse(parsed) + "." + rblHost)

	m := new(dns.Msg)
	m.SetQuestion(qname, dns.TypeA)
	m.RecursionDesired = true

	resp, err := r.exchange(ctx, m)

	elapsed := time.Since(start)

	if err != nil {
		zlog.Debug("single-RBL lookup failed", "rbl", rblHost, "ip", ip, "error", err.Error())
		kind := classifyErrorKind(err)
		r.record(kind)
		return Result{Listed: cache.Error, ErrorKind: kind, TTL: defaultErrorTTL, ResponseTime: elapsed}
	}

	result := classify(resp, elapsed)
	if result.Listed == cache.Error {
		r.record(result.ErrorKind)
	}

	return result
}

func (r *Resolver) record(kind cache.ErrorKind) {
	if r.recorder != nil {
		r.recorder.UpstreamError(string(kind))
	}
}

func (r *Resolver) exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	var lastErr error

	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}

	if lastErr == nil {
		lastErr = errNoServers
	}

	return nil, lastErr
}

func classify(resp *dns.Msg, elapsed time.Duration) Result {
	if resp == nil {
		return Result{Listed: cache.Error, ErrorKind: cache.ErrNetwork, TTL: defaultErrorTTL, ResponseTime: elapsed}
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
		a, ttl := firstA(resp)
		if a == "" {
			return Result{Listed: cache.NotListed, TTL: defaultNotListedTTL, ResponseTime: elapsed}
		}

		if ttl <= 0 {
			ttl = defaultListedTTL
		}

		return Result{Listed: cache.Listed, Response: a, TTL: ttl, ResponseTime: elapsed}

	case dns.RcodeNameError:
		return Result{Listed: cache.NotListed, TTL: defaultNotListedTTL, ResponseTime: elapsed}

	case dns.RcodeServerFailure:
		return Result{Listed: cache.Error, ErrorKind: cache.ErrUpstreamServfail, TTL: defaultErrorTTL, ResponseTime: elapsed}

	default:
		return Result{Listed: cache.Error, ErrorKind: cache.ErrInvalidQuery, TTL: defaultErrorTTL, ResponseTime: elapsed}
	}
}

func firstA(resp *dns.Msg) (string, time.Duration) {
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), time.Duration(a.Hdr.Ttl) * time.Second
		}
	}

	return "", 0
}

func classifyErrorKind(err error) cache.ErrorKind {
	if err == context.DeadlineExceeded {
		return cache.ErrTimeout
	}
	return cache.ErrNetwork
}

var errNoServers = errors.New("singlerbl: no upstream servers configured")
