package impl

import (
	"go.dedis.ch/kademlia/peer"
	"go.dedis.ch/kademlia/types"
)

// lookupResult is lookup's engineResult payload: Option<V> represented the
// Go way, a value plus a found flag.
type lookupResult struct {
	value []byte
	found bool
}

// runLookup implements spec.md §4.1.1's lookup(target) -> Option<V>: query
// kind FIND_VALUE, terminate on RETURN_VALUE, otherwise converge via
// RETURN_NODES. Grounded in the teacher's Peer.FindNode/dht lookup loop
// (peer/impl/dht.go), restated as one of the engine's three drivers rather
// than its own hand-rolled retry loop.
func runLookup(host engineHost, target types.Identifier) ([]byte, bool) {
	send := makeSend(host, func(requestID string) types.Message {
		return &types.FindValue{RequestID: requestID, Target: target}
	}, []string{"returnvalue", "returnnodes"})

	onCommand := func(L *lookupState, cmd types.Message) decision {
		switch c := cmd.(type) {
		case *types.ReturnValue:
			return decision{kind: decisionTerminal, result: lookupResult{value: c.Value, found: true}}
		case *types.ReturnNodes:
			return decision{kind: decisionContinue, nodes: c.Nodes}
		default:
			return decision{kind: decisionIgnore}
		}
	}

	none := func(L *lookupState) engineResult { return lookupResult{found: false} }

	seed := host.routing().closestKnown(target, peer.Alpha)
	result := runEngine(target, host, seed, send, onCommand, none, none)

	lr := result.(lookupResult)
	return lr.value, lr.found
}

// runStore implements spec.md §4.1.1's store(key, value): query kind
// FIND_NODE, converge via RETURN_NODES, then on reaching the frontier fire a
// single STORE at the polled peer closest to key. The inbox is registered
// for RETURN_VALUE too, so a RETURN_VALUE carrying this query's request id
// reaches onCommand instead of being dropped by the router — onCommand's
// default case is spec.md §4.1.1's "any other RETURN_* is ignored (the
// driver keeps waiting)," reachable only because both kinds are registered
// here. Grounded
// in the teacher's Peer.UploadDHT's placement step (peer/impl/dht.go),
// stripped of chunked-file bookkeeping.
func runStore(host engineHost, key types.Identifier, value []byte) {
	send := makeSend(host, func(requestID string) types.Message {
		return &types.FindNode{RequestID: requestID, Target: key}
	}, []string{"returnnodes", "returnvalue"})

	onCommand := func(L *lookupState, cmd types.Message) decision {
		if rn, ok := cmd.(*types.ReturnNodes); ok {
			return decision{kind: decisionContinue, nodes: rn.Nodes}
		}
		return decision{kind: decisionIgnore}
	}

	noop := func(L *lookupState) engineResult { return nil }

	place := func(L *lookupState) engineResult {
		if len(L.polled) == 0 {
			return nil
		}
		nearest := sortedByDistance(mapValues(L.polled), key)[0]
		host.transmit(nearest, &types.Store{Key: key, Value: value})
		return nil
	}

	seed := host.routing().closestKnown(key, peer.Alpha)
	runEngine(key, host, seed, send, onCommand, noop, place)
}

// runJoinNetwork implements spec.md §4.1.1's joinNetwork(seed): query kind
// FIND_NODE(ownId), seeded with exactly the supplied seed node rather than
// the routing view's α nearest (the view is empty or stale on join, which
// is the whole point of joining). The inbox is registered for RETURN_VALUE
// too, for the same reason as runStore, so onCommand's default case (ignore)
// is reachable rather than leaving the peer pending until it times out.
// Both terminal actions discard the result. Grounded in the teacher's
// Peer.Bootstrap (peer/impl/dht.go).
func runJoinNetwork(host engineHost, seed types.Node) {
	ownID := host.routing().ownID()

	send := makeSend(host, func(requestID string) types.Message {
		return &types.FindNode{RequestID: requestID, Target: ownID}
	}, []string{"returnnodes", "returnvalue"})

	onCommand := func(L *lookupState, cmd types.Message) decision {
		if rn, ok := cmd.(*types.ReturnNodes); ok {
			return decision{kind: decisionContinue, nodes: rn.Nodes}
		}
		return decision{kind: decisionIgnore}
	}

	discard := func(L *lookupState) engineResult { return nil }

	runEngine(ownID, host, []types.Node{seed}, send, onCommand, discard, discard)
}
