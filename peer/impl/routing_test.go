package impl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.dedis.ch/kademlia/types"
)

func mkNode(addr string) types.Node {
	return types.Node{ID: types.IdentifierFromString(addr), Addr: addr}
}

func TestRoutingTable_InsertAndClosestKnown(t *testing.T) {
	self := mkNode("self:0")
	rt := newRoutingTable(self)

	a := mkNode("a:0")
	b := mkNode("b:0")
	c := mkNode("c:0")

	rt.insert(a)
	rt.insert(b)
	rt.insert(c)

	closest := rt.closestKnown(a.ID, 2)
	require.Len(t, closest, 2)
	require.True(t, closest[0].Equal(a), "the queried node's own id should be its own closest match")
}

func TestRoutingTable_InsertSelfIsNoOp(t *testing.T) {
	self := mkNode("self:0")
	rt := newRoutingTable(self)

	rt.insert(self)

	require.Empty(t, rt.closestKnown(self.ID, 10))
}

func TestRoutingTable_InsertRefreshesExistingEntry(t *testing.T) {
	self := mkNode("self:0")
	rt := newRoutingTable(self)
	a := mkNode("a:0")

	rt.insert(a)
	rt.insert(a)

	idx := rt.bucketIndex(a.ID)
	require.Len(t, rt.buckets[idx].getContacts(), 1)
}

func TestRoutingTable_DeleteRemovesNode(t *testing.T) {
	self := mkNode("self:0")
	rt := newRoutingTable(self)
	a := mkNode("a:0")

	rt.insert(a)
	rt.delete(a.ID)

	require.Empty(t, rt.closestKnown(a.ID, 10))
}

func TestRoutingTable_DeleteAbsentNodeIsNoOp(t *testing.T) {
	self := mkNode("self:0")
	rt := newRoutingTable(self)

	rt.delete(mkNode("never-inserted:0").ID)
}

func TestRoutingTable_ClosestKnownOrdersByDistance(t *testing.T) {
	self := mkNode("self:0")
	rt := newRoutingTable(self)

	nodes := []types.Node{mkNode("p1:0"), mkNode("p2:0"), mkNode("p3:0"), mkNode("p4:0"), mkNode("p5:0")}
	for _, n := range nodes {
		rt.insert(n)
	}

	target := nodes[2].ID
	closest := rt.closestKnown(target, 3)
	require.Len(t, closest, 3)

	for i := 1; i < len(closest); i++ {
		require.True(t,
			target.Distance(closest[i-1].ID).Cmp(target.Distance(closest[i].ID)) <= 0,
			"closestKnown must be ascending by distance to target",
		)
	}
}
