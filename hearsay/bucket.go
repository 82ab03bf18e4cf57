// Package hearsay holds two distance stores a node accumulates: the
// distance-bucketed node_list used by the coordinate solver and peer
// selector, whose entries are measured over this node's own sessions, and a
// bounded cache of AcceptWantPing edges reported by intermediaries about
// pairs of other nodes. The cache's edges never came from a session this
// node owns, hence the name.
package hearsay

import (
	"container/ring"

	"github.com/latticemesh/overlay/ident"
)

// Bucket holds every NodeID the node has heard of at one particular
// RouteScalar distance from itself. The wire format for node_list in the
// originating design is a single NodeID per distance key; this core resolves
// the resulting collisions (two different node IDs reported at the same
// distance) with a ring, so repeated lookups at a saturated distance rotate
// through the known occupants instead of always favoring whichever arrived
// first or last.
type Bucket struct {
	members map[ident.NodeID]*ring.Ring
	cursor  *ring.Ring
}

// NewBucket returns an empty bucket.
func NewBucket() *Bucket {
	return &Bucket{members: make(map[ident.NodeID]*ring.Ring)}
}

// Add inserts id if absent. It is idempotent: re-adding an id already in the
// bucket is a no-op, matching the requirement that node_list insertion never
// duplicate a node_id already present at any distance.
func (b *Bucket) Add(id ident.NodeID) {
	if _, ok := b.members[id]; ok {
		return
	}
	r := ring.New(1)
	r.Value = id
	if b.cursor == nil {
		b.cursor = r
	} else {
		b.cursor.Link(r)
	}
	b.members[id] = r
}

// Remove drops id from the bucket, if present.
func (b *Bucket) Remove(id ident.NodeID) {
	r, ok := b.members[id]
	if !ok {
		return
	}
	delete(b.members, id)
	if len(b.members) == 0 {
		b.cursor = nil
		return
	}
	if b.cursor == r {
		b.cursor = b.cursor.Next()
	}
	r.Prev().Unlink(1)
}

// Len reports how many distinct node IDs occupy this distance.
func (b *Bucket) Len() int { return len(b.members) }

// Has reports whether id is a known occupant of this distance.
func (b *Bucket) Has(id ident.NodeID) bool {
	_, ok := b.members[id]
	return ok
}

// Next rotates the bucket and returns the node ID that was at the front,
// breaking ties between same-distance nodes round-robin instead of
// deterministically favoring one. Returns false on an empty bucket.
func (b *Bucket) Next() (ident.NodeID, bool) {
	if b.cursor == nil {
		return 0, false
	}
	id := b.cursor.Value.(ident.NodeID)
	b.cursor = b.cursor.Next()
	return id, true
}

// All returns every member of the bucket in current ring order, without
// advancing the rotation.
func (b *Bucket) All() []ident.NodeID {
	out := make([]ident.NodeID, 0, len(b.members))
	if b.cursor == nil {
		return out
	}
	r := b.cursor
	for i := 0; i < len(b.members); i++ {
		out = append(out, r.Value.(ident.NodeID))
		r = r.Next()
	}
	return out
}
