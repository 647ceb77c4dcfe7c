// Package server runs the DNS listeners and dispatches every incoming
// query through the configured middleware chain.
package server

import (
	"context"
	"sync"

	"github.com/miekg/dns"
	zlog "github.com/semihalev/zlog/v2"

	"github.com/blockdns/rbld/middleware"
)

// Server accepts DNS queries over UDP and TCP and runs them through a
// pool of middleware chains.
type Server struct {
	addr string

	chainPool sync.Pool
}

// New returns a Server bound to addr, dispatching every query through
// handlers in order.
func New(addr string, handlers []middleware.Handler) *Server {
	if addr == "" {
		addr = ":53"
	}

	s := &Server{addr: addr}

	s.chainPool.New = func() interface{} {
		return middleware.NewChain(handlers)
	}

	return s
}

// ServeDNS implements dns.Handler.
func (s *Server) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	ch := s.chainPool.Get().(*middleware.Chain)

	ch.Reset(w, r)
	ch.Next(context.Background())

	s.chainPool.Put(ch)
}

// Run starts the UDP and TCP listeners and blocks until both exit.
func (s *Server) Run() {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.listenAndServe("udp")
	}()
	go func() {
		defer wg.Done()
		s.listenAndServe("tcp")
	}()

	wg.Wait()
}

func (s *Server) listenAndServe(network string) {
	zlog.Info("DNS server listening", "net", network, "addr", s.addr)

	srv := &dns.Server{
		Addr:          s.addr,
		Net:           network,
		Handler:       s,
		MaxTCPQueries: 2048,
		ReusePort:     true,
	}

	if err := srv.ListenAndServe(); err != nil {
		zlog.Error("DNS listener failed", "net", network, "addr", s.addr, "error", err.Error())
	}
}
