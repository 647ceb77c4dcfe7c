package customrbl

import (
	"net"
	"sync"

	"github.com/yl2chen/cidranger"

	"github.com/blockdns/rbld/ipnet"
)

// rangerEntry adapts an Entry into cidranger.RangerEntry, carrying the
// id and network needed for longest-prefix tie-breaking.
type rangerEntry struct {
	entry   Entry
	network net.IPNet
}

func (r rangerEntry) Network() net.IPNet { return r.network }

// snapshot is an immutable, queryable view over the listed=true rows,
// grounded on the teacher corpus's accesslist.AccessList use of
// cidranger.NewPCTrieRanger(). Rebuilt wholesale on every admin
// mutation; readers see a consistent view via a mutex-guarded pointer
// swap.
type snapshot struct {
	ranger cidranger.Ranger
}

func buildSnapshot(entries []Entry) *snapshot {
	r := cidranger.NewPCTrieRanger()

	for _, e := range entries {
		if !e.Listed {
			continue
		}

		_, network, err := net.ParseCIDR(e.Network)
		if err != nil {
			continue
		}

		_ = r.Insert(rangerEntry{entry: e, network: *network})
	}

	return &snapshot{ranger: r}
}

// lookup returns the longest-prefix listed=true match for ip, if any.
func (s *snapshot) lookup(ip net.IP) (Entry, bool) {
	matches, err := s.ranger.ContainingNetworks(ip)
	if err != nil || len(matches) == 0 {
		return Entry{}, false
	}

	candidates := make([]ipnet.RankedEntry, 0, len(matches))
	byID := make(map[uint]Entry, len(matches))

	for _, m := range matches {
		re, ok := m.(rangerEntry)
		if !ok {
			continue
		}
		network := re.network
		candidates = append(candidates, ipnet.RankedEntry{ID: re.entry.ID, Network: &network})
		byID[re.entry.ID] = re.entry
	}

	best, found := ipnet.LongestPrefixMatch(candidates)
	if !found {
		return Entry{}, false
	}

	return byID[best.ID], true
}

// ranger owns the swappable snapshot and the mutex guarding rebuilds.
type ranger struct {
	mu   sync.Mutex
	live *snapshot
}

func newRanger() *ranger {
	return &ranger{live: buildSnapshot(nil)}
}

func (r *ranger) current() *snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *ranger) rebuild(entries []Entry) {
	next := buildSnapshot(entries)

	r.mu.Lock()
	r.live = next
	r.mu.Unlock()
}
