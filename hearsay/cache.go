package hearsay

import (
	"fmt"

	"github.com/golang/groupcache/lru"

	"github.com/latticemesh/overlay/ident"
)

// Edge is a hearsay entry in route_map: a distance between two nodes learned
// from a third party (AcceptWantPing, ConnectionInit's recursive dispatch)
// rather than measured directly by this node.
type Edge struct {
	From, To ident.NodeID
	Dist     ident.RouteScalar
}

// Cache bounds route_map's hearsay edges behind an LRU so second-hand
// gossip about other nodes' distances can't grow without limit.
type Cache struct {
	edges *lru.Cache
}

// NewCache returns a cache holding at most maxEdges hearsay edges, evicting
// least-recently-used entries once full.
func NewCache(maxEdges int) *Cache {
	return &Cache{edges: lru.New(maxEdges)}
}

func edgeKey(from, to ident.NodeID) string {
	return fmt.Sprintf("%d->%d", from, to)
}

// Add records or refreshes a hearsay edge.
func (c *Cache) Add(e Edge) {
	c.edges.Add(edgeKey(e.From, e.To), e)
}

// Get returns the known hearsay edge between from and to, if any.
func (c *Cache) Get(from, to ident.NodeID) (Edge, bool) {
	v, ok := c.edges.Get(edgeKey(from, to))
	if !ok {
		return Edge{}, false
	}
	return v.(Edge), true
}

// Len reports the number of hearsay edges currently cached.
func (c *Cache) Len() int { return c.edges.Len() }
