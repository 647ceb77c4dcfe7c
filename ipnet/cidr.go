package ipnet

import "net"

// Contains reports whether network contains ip, version-aware: a v4
// network never contains a v6 address and vice versa.
func Contains(network *net.IPNet, ip net.IP) bool {
	v4net, v4ip := network.IP.To4(), ip.To4()
	if (v4net == nil) != (v4ip == nil) {
		return false
	}

	return network.Contains(ip)
}

// PrefixLen returns the network's prefix length in bits.
func PrefixLen(network *net.IPNet) int {
	ones, _ := network.Mask.Size()
	return ones
}

// RankedEntry is the minimal shape longest-prefix matching needs: an
// id for tie-breaking and the network to test containment against.
type RankedEntry struct {
	ID      uint
	Network *net.IPNet
}

// LongestPrefixMatch returns the entry among candidates with the
// largest prefix length, ties broken by smallest id; it does not test
// containment itself. Callers are expected to have pre-filtered candidates to those
// actually containing ip (e.g. via a cidranger.Ranger.ContainingNetworks
// lookup) and to listed=true rows only; this function only applies the
// ranking rule.
func LongestPrefixMatch(candidates []RankedEntry) (RankedEntry, bool) {
	var best RankedEntry
	found := false

	for _, c := range candidates {
		if !found {
			best, found = c, true
			continue
		}

		bestLen := PrefixLen(best.Network)
		cLen := PrefixLen(c.Network)

		if cLen > bestLen || (cLen == bestLen && c.ID < best.ID) {
			best = c
		}
	}

	return best, found
}
