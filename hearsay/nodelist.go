package hearsay

import (
	"sort"

	"github.com/latticemesh/overlay/ident"
)

// NodeList is the node_list ordered map<RouteScalar -> NodeID>: every tested
// remote (active session, at least one completed ping round trip), ordered
// by estimated distance. Entries are inserted on first ping round-trip and
// never evicted in this core; insertion is idempotent by NodeID, per the
// source's open question about unspecified eviction/collision policy --
// resolved here by bucketing same-distance arrivals instead of overwriting.
type NodeList struct {
	buckets map[ident.RouteScalar]*Bucket
	at      map[ident.NodeID]ident.RouteScalar
}

// NewNodeList returns an empty node_list.
func NewNodeList() *NodeList {
	return &NodeList{
		buckets: make(map[ident.RouteScalar]*Bucket),
		at:      make(map[ident.NodeID]ident.RouteScalar),
	}
}

// Insert records id at distance dist. If id is already present at a
// different distance (a later, presumably more accurate ping sample), it is
// moved rather than duplicated.
func (l *NodeList) Insert(dist ident.RouteScalar, id ident.NodeID) {
	if prev, ok := l.at[id]; ok {
		if prev == dist {
			return
		}
		l.buckets[prev].Remove(id)
		if l.buckets[prev].Len() == 0 {
			delete(l.buckets, prev)
		}
	}
	b, ok := l.buckets[dist]
	if !ok {
		b = NewBucket()
		l.buckets[dist] = b
	}
	b.Add(id)
	l.at[id] = dist
}

// Contains reports whether id has an entry in the node_list.
func (l *NodeList) Contains(id ident.NodeID) bool {
	_, ok := l.at[id]
	return ok
}

// Len is the number of distinct node IDs across every distance bucket.
func (l *NodeList) Len() int { return len(l.at) }

// AllAscending returns every known node ID ordered by ascending distance.
// Nodes sharing a distance are returned in the bucket's current ring order,
// and each call then advances every bucket's ring by one, so repeated scans
// (e.g. successive RequestPings fan-outs) do not always favor the same
// occupant of a saturated distance.
func (l *NodeList) AllAscending() []ident.NodeID {
	dists := make([]ident.RouteScalar, 0, len(l.buckets))
	for d := range l.buckets {
		dists = append(dists, d)
	}
	sort.Slice(dists, func(i, j int) bool { return dists[i] < dists[j] })

	out := make([]ident.NodeID, 0, len(l.at))
	for _, d := range dists {
		b := l.buckets[d]
		out = append(out, b.All()...)
		b.Next()
	}
	return out
}

// Ascending is AllAscending with exclude filtered out, for callers (like
// RequestPings handling) that must not report a sender back to itself.
func (l *NodeList) Ascending(exclude ident.NodeID) []ident.NodeID {
	all := l.AllAscending()
	out := make([]ident.NodeID, 0, len(all))
	for _, id := range all {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

// Rotate advances the ring at dist, if any, so the next Ascending scan
// surfaces a different occupant first among nodes tied at that distance.
func (l *NodeList) Rotate(dist ident.RouteScalar) {
	if b, ok := l.buckets[dist]; ok {
		b.Next()
	}
}
