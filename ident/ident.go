// Package ident holds the scalar identity and measurement types shared by
// every layer of the overlay node: node and substrate addresses, session
// tokens, and the routing coordinate/distance types the coordinate solver
// and peer selector operate on.
package ident

import "math"

// NodeID is the stable identity of a participant in the overlay.
type NodeID uint64

// InternetID is a substrate-level address, opaque to the node core.
type InternetID uint64

// SessionID is an unguessable token minted by a handshake initiator.
type SessionID uint64

// Tick is the node's monotonic logical clock value.
type Tick int64

// RouteScalar is a non-negative integer distance, measured in ticks.
type RouteScalar int64

// RouteCoord is a 2-D integer coordinate in the shared latency-embedding
// space.
type RouteCoord struct {
	X, Y int64
}

// Dist returns the rounded Euclidean distance between two coordinates, as a
// RouteScalar usable for ranking peers.
func (c RouteCoord) Dist(o RouteCoord) RouteScalar {
	dx := float64(c.X - o.X)
	dy := float64(c.Y - o.Y)
	return RouteScalar(math.Round(math.Hypot(dx, dy)))
}
