// Package zone implements the query-name classifier described in
// spec.md §4.F: built once at startup from the RBL list, the optional
// aggregate zones file, and the optional custom-RBL config, then
// consulted on every incoming query to route it to the right handler.
package zone

import (
	"net"
	"strings"

	"github.com/blockdns/rbld/ipnet"
)

// Kind is the disjoint classification spec.md §3 defines for a query name.
type Kind int

const (
	// Forward means the name matched no configured zone.
	Forward Kind = iota
	SingleRBL
	Aggregate
	CustomRBL
)

// RBL is an immutable RBL descriptor, per spec.md §3.
type RBL struct {
	Name        string
	Host        string
	Description string
}

// AggregateZone is an aggregate zone descriptor with rbls already
// expanded from "*" to the concrete RBL set at load time.
type AggregateZone struct {
	Domain      string
	Description string
	RBLs        []string
}

// Match is the classification result for a query name.
type Match struct {
	Kind Kind

	RBL           RBL           // set iff Kind == SingleRBL
	AggregateZone AggregateZone // set iff Kind == Aggregate
	CustomZone    string        // set iff Kind == CustomRBL

	ClientIP net.IP // the reversed-IP prefix, parsed
}

// Registry is the built, queryable zone table.
type Registry struct {
	rbls        []RBL
	aggregates  []AggregateZone
	customZone  string
	customKnown bool
}

// Build constructs a Registry from the RBL list, the optional
// aggregate zone descriptors (with "*" already expanded by the
// caller), and the optional enabled custom-RBL zone name.
func Build(rbls []RBL, aggregates []AggregateZone, customZone string) *Registry {
	r := &Registry{rbls: rbls, aggregates: aggregates}

	if customZone != "" {
		r.customZone = dns(customZone)
		r.customKnown = true
	}

	for i, a := range aggregates {
		r.aggregates[i].Domain = dns(a.Domain)
	}

	for i, rbl := range rbls {
		r.rbls[i].Host = dns(rbl.Host)
	}

	return r
}

// ExpandWildcard returns rbls unchanged if it is not the wildcard
// sentinel, or every host in all otherwise, per spec.md §3's "rendering
// of * is by value" rule.
func ExpandWildcard(rbls []string, all []RBL) []string {
	if len(rbls) == 1 && rbls[0] == "*" {
		hosts := make([]string, len(all))
		for i, r := range all {
			hosts[i] = r.Host
		}
		return hosts
	}

	return rbls
}

func dns(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	return name
}

// Classify implements spec.md §4.F: O(#zones) linear suffix match,
// aggregate and custom-RBL taking precedence over single RBLs by
// longest matching suffix, everything else falling to Forward.
func (r *Registry) Classify(qname string) Match {
	qname = dns(qname)

	if r.customKnown && strings.HasSuffix(qname, "."+r.customZone) {
		if ip, ok := r.tryReversedPrefix(qname, r.customZone); ok {
			return Match{Kind: CustomRBL, CustomZone: r.customZone, ClientIP: ip}
		}
	}

	var bestAgg *AggregateZone
	var bestAggIP net.IP
	bestAggLen := -1

	for i, a := range r.aggregates {
		if strings.HasSuffix(qname, "."+a.Domain) && len(a.Domain) > bestAggLen {
			if ip, ok := r.tryReversedPrefix(qname, a.Domain); ok {
				bestAgg = &r.aggregates[i]
				bestAggIP = ip
				bestAggLen = len(a.Domain)
			}
		}
	}

	if bestAgg != nil {
		return Match{Kind: Aggregate, AggregateZone: *bestAgg, ClientIP: bestAggIP}
	}

	var bestRBL *RBL
	var bestRBLIP net.IP
	bestRBLLen := -1

	for i, rbl := range r.rbls {
		if strings.HasSuffix(qname, "."+rbl.Host) && len(rbl.Host) > bestRBLLen {
			if ip, ok := r.tryReversedPrefix(qname, rbl.Host); ok {
				bestRBL = &r.rbls[i]
				bestRBLIP = ip
				bestRBLLen = len(rbl.Host)
			}
		}
	}

	if bestRBL != nil {
		return Match{Kind: SingleRBL, RBL: *bestRBL, ClientIP: bestRBLIP}
	}

	return Match{Kind: Forward}
}

func (r *Registry) tryReversedPrefix(qname, suffix string) (net.IP, bool) {
	ip := ipnet.ParseReverse(qname, suffix)
	return ip, ip != nil
}

// RBLs returns the full RBL set, for wildcard aggregate expansion.
func (r *Registry) RBLs() []RBL { return r.rbls }
