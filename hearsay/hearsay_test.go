package hearsay

import (
	"testing"

	"github.com/latticemesh/overlay/ident"
)

func TestBucketRotatesTies(t *testing.T) {
	b := NewBucket()
	b.Add(1)
	b.Add(2)
	b.Add(3)
	if b.Len() != 3 {
		t.Fatalf("expected 3 members, got %d", b.Len())
	}
	first, ok := b.Next()
	if !ok {
		t.Fatalf("expected a member")
	}
	second, _ := b.Next()
	third, _ := b.Next()
	fourth, _ := b.Next()
	if fourth != first {
		t.Fatalf("expected rotation to cycle back to %v, got %v", first, fourth)
	}
	seen := map[ident.NodeID]bool{first: true, second: true, third: true}
	if len(seen) != 3 {
		t.Fatalf("expected three distinct members visited, got %v", seen)
	}
}

func TestBucketAddIdempotent(t *testing.T) {
	b := NewBucket()
	b.Add(5)
	b.Add(5)
	if b.Len() != 1 {
		t.Fatalf("expected idempotent add, got len %d", b.Len())
	}
}

func TestBucketRemove(t *testing.T) {
	b := NewBucket()
	b.Add(1)
	b.Add(2)
	b.Remove(1)
	if b.Has(1) {
		t.Fatalf("expected 1 to be removed")
	}
	if b.Len() != 1 {
		t.Fatalf("expected len 1, got %d", b.Len())
	}
	id, ok := b.Next()
	if !ok || id != 2 {
		t.Fatalf("expected remaining member 2, got %v ok=%v", id, ok)
	}
}

func TestNodeListAscendingOrder(t *testing.T) {
	l := NewNodeList()
	l.Insert(30, 3)
	l.Insert(10, 1)
	l.Insert(20, 2)
	got := l.Ascending(0)
	want := []ident.NodeID{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestNodeListInsertIdempotentByNodeID(t *testing.T) {
	l := NewNodeList()
	l.Insert(10, 1)
	l.Insert(10, 1)
	if l.Len() != 1 {
		t.Fatalf("expected idempotent insert, got len %d", l.Len())
	}
}

func TestNodeListReinsertMovesDistance(t *testing.T) {
	l := NewNodeList()
	l.Insert(10, 1)
	l.Insert(5, 1)
	if l.Len() != 1 {
		t.Fatalf("expected single entry after move, got %d", l.Len())
	}
	got := l.Ascending(0)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected node 1 present after move, got %v", got)
	}
}

func TestNodeListExcludesSelf(t *testing.T) {
	l := NewNodeList()
	l.Insert(10, 1)
	l.Insert(20, 2)
	got := l.Ascending(1)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected only node 2, got %v", got)
	}
}

func TestHearsayCacheEvictsLRU(t *testing.T) {
	c := NewCache(2)
	c.Add(Edge{From: 1, To: 2, Dist: 5})
	c.Add(Edge{From: 1, To: 3, Dist: 7})
	c.Add(Edge{From: 1, To: 4, Dist: 9})
	if c.Len() != 2 {
		t.Fatalf("expected cache to bound at 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get(1, 2); ok {
		t.Fatalf("expected oldest edge to be evicted")
	}
	if _, ok := c.Get(1, 4); !ok {
		t.Fatalf("expected newest edge to be retained")
	}
}
