// Package router implements the DNS request dispatcher described in
// spec.md §4.G: classify the query name via the zone registry, route
// to the single-RBL resolver, aggregate executor, custom-RBL store, or
// upstream forwarder, and encode the answer.
package router

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"

	"github.com/blockdns/rbld/aggregate"
	"github.com/blockdns/rbld/cache"
	"github.com/blockdns/rbld/customrbl"
	"github.com/blockdns/rbld/middleware"
	"github.com/blockdns/rbld/middleware/forwarder"
	"github.com/blockdns/rbld/singlerbl"
	"github.com/blockdns/rbld/zone"
)

// customRBLTTL is the fixed TTL on a custom-RBL A/TXT answer, per
// spec.md §6.
const customRBLTTL = 3600 * time.Second

// Router is the chain's terminal handler: it never calls ch.Next, it
// always writes a response itself.
type Router struct {
	registry  atomic.Pointer[zone.Registry]
	single    *singlerbl.CachedResolver
	aggregate *aggregate.Executor
	custom    *customrbl.CustomRBL
	forwarder *forwarder.Forwarder
}

// New returns a Router wired to every downstream component.
func New(registry *zone.Registry, single *singlerbl.CachedResolver, agg *aggregate.Executor, custom *customrbl.CustomRBL, fwd *forwarder.Forwarder) *Router {
	r := &Router{single: single, aggregate: agg, custom: custom, forwarder: fwd}
	r.registry.Store(registry)
	return r
}

// SetRegistry atomically swaps in a freshly rebuilt zone registry,
// used by the config hot-reload watcher.
func (r *Router) SetRegistry(registry *zone.Registry) {
	r.registry.Store(registry)
}

// Name returns the middleware name.
func (r *Router) Name() string { return "router" }

// ServeDNS implements middleware.Handler.
func (r *Router) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	req := ch.Request
	if len(req.Question) != 1 {
		ch.CancelWithRcode(dns.RcodeServerFailure, false)
		return
	}

	q := req.Question[0]
	match := r.registry.Load().Classify(q.Name)

	var resp *dns.Msg

	switch match.Kind {
	case zone.SingleRBL:
		resp = r.serveSingleRBL(ctx, req, q, match)
	case zone.Aggregate:
		resp = r.serveAggregate(ctx, req, q, match)
	case zone.CustomRBL:
		resp = r.serveCustomRBL(req, q, match)
	default:
		resp = r.forwarder.Forward(ctx, req)
	}

	resp.Response = true
	resp.Authoritative = match.Kind != zone.Forward
	resp.RecursionAvailable = false

	_ = ch.Writer.WriteMsg(resp)
	ch.Cancel()
}

func (r *Router) serveSingleRBL(ctx context.Context, req *dns.Msg, q dns.Question, match zone.Match) *dns.Msg {
	if q.Qtype == dns.TypeAAAA {
		return noData(req)
	}

	if q.Qtype != dns.TypeA && q.Qtype != dns.TypeTXT {
		return noData(req)
	}

	result := r.single.Check(ctx, match.ClientIP.String(), match.RBL.Host)

	resp := new(dns.Msg)
	resp.SetReply(req)

	if result.Listed == cache.Error {
		resp.Rcode = dns.RcodeServerFailure
		return resp
	}

	if result.Listed != cache.Listed {
		resp.Rcode = dns.RcodeNameError
		return resp
	}

	resp.Rcode = dns.RcodeSuccess

	if q.Qtype == dns.TypeA {
		resp.Answer = append(resp.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: uint32(result.TTL.Seconds())},
			A:   net.ParseIP(result.Response),
		})
	}

	return resp
}

func (r *Router) serveAggregate(ctx context.Context, req *dns.Msg, q dns.Question, match zone.Match) *dns.Msg {
	if q.Qtype != dns.TypeA && q.Qtype != dns.TypeTXT {
		return noData(req)
	}

	rbls := zone.ExpandWildcard(match.AggregateZone.RBLs, r.registry.Load().RBLs())
	outcome := r.aggregate.Run(ctx, match.ClientIP.String(), rbls)

	resp := new(dns.Msg)
	resp.SetReply(req)

	if outcome.ListedCount == 0 {
		resp.Rcode = dns.RcodeNameError
		return resp
	}

	resp.Rcode = dns.RcodeSuccess

	switch q.Qtype {
	case dns.TypeA:
		addr, ttl, ok := outcome.EncodeAnswerA()
		if ok {
			resp.Answer = append(resp.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: uint32(ttl.Seconds())},
				A:   net.ParseIP(addr),
			})
		}
	case dns.TypeTXT:
		for _, line := range outcome.EncodeAnswerTXT() {
			resp.Answer = append(resp.Answer, &dns.TXT{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: uint32(aggregate.SentinelTTL.Seconds())},
				Txt: []string{line},
			})
		}
	}

	return resp
}

func (r *Router) serveCustomRBL(req *dns.Msg, q dns.Question, match zone.Match) *dns.Msg {
	if q.Qtype != dns.TypeA && q.Qtype != dns.TypeTXT {
		return noData(req)
	}

	result := r.custom.Check(match.ClientIP)

	resp := new(dns.Msg)
	resp.SetReply(req)

	if !result.Listed {
		resp.Rcode = dns.RcodeNameError
		return resp
	}

	resp.Rcode = dns.RcodeSuccess

	switch q.Qtype {
	case dns.TypeA:
		resp.Answer = append(resp.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: uint32(customRBLTTL.Seconds())},
			A:   net.ParseIP(aggregate.SentinelAddress),
		})
	case dns.TypeTXT:
		resp.Answer = append(resp.Answer, &dns.TXT{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: uint32(customRBLTTL.Seconds())},
			Txt: []string{result.Reason},
		})
	}

	return resp
}

func noData(req *dns.Msg) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Rcode = dns.RcodeSuccess
	return resp
}
