package routecoord

import "github.com/latticemesh/overlay/ident"

// Candidate is one node_list entry with a known coordinate, the input to
// CalculatePeers.
type Candidate struct {
	NodeID ident.NodeID
	Coord  ident.RouteCoord
}

// IsViablePeer reports whether candidate is closer to self than the
// farthest peer currently occupying peerList, or whether peerList still has
// room below target. It is a pure local predicate: no packets are sent,
// matching the core's requirement that peer selection never itself
// triggers network activity.
func IsViablePeer(self ident.RouteCoord, candidate ident.RouteCoord, peerList []ident.RouteCoord, target int) bool {
	if len(peerList) < target {
		return true
	}
	candDist := self.Dist(candidate)
	worst := self.Dist(peerList[0])
	for _, p := range peerList[1:] {
		if d := self.Dist(p); d > worst {
			worst = d
		}
	}
	return candDist < worst
}

// CalculatePeers rebuilds peer_list from node_list entries in ascending
// distance order (callers pass candidates pre-sorted, e.g. from
// hearsay.NodeList.Ascending filtered to known coordinates), keeping the
// first target viable entries.
func CalculatePeers(self ident.RouteCoord, ordered []Candidate, target int) []Candidate {
	peers := make([]Candidate, 0, target)
	coords := make([]ident.RouteCoord, 0, target)
	for _, c := range ordered {
		if len(peers) >= target {
			break
		}
		if IsViablePeer(self, c.Coord, coords, target) {
			peers = append(peers, c)
			coords = append(coords, c.Coord)
		}
	}
	return peers
}
