package impl

import (
	"sort"
	"time"

	"github.com/rs/xid"

	"go.dedis.ch/kademlia/peer"
	"go.dedis.ch/kademlia/types"
)

// engineHost is everything the lookup engine needs from the node running
// it: a routing view to seed and mutate, a router to bind fresh inboxes
// to, a wire send, and the fixed per-query deadline. A real node
// implements this with its own routingTable/replyRouter/socket; tests can
// supply a narrower fake, since the engine never reaches past this
// interface. This is the seam spec.md §4.3 calls "collaborators (contracts
// only)".
type engineHost interface {
	routing() *routingTable
	router() *replyRouter
	transmit(dest types.Node, msg types.Message)
	ackTimeout() time.Duration
}

// engineResult is the opaque terminal value a run of the engine produces.
// Each operation driver knows how to interpret the one it gets back.
type engineResult interface{}

// lookupState is spec.md §3's L: per-invocation, owned by the single task
// running the engine, never shared. Sets are represented as maps keyed by
// the node id's string form since types.Node carries no ordering of its
// own.
type lookupState struct {
	target types.Identifier
	inbox  *replyInbox

	known   map[string]types.Node
	pending map[string]types.Node
	polled  map[string]types.Node
	retries map[string]int

	host engineHost
}

func newLookupState(target types.Identifier, host engineHost) *lookupState {
	return &lookupState{
		target:  target,
		inbox:   newReplyInbox(host.router()),
		known:   make(map[string]types.Node),
		pending: make(map[string]types.Node),
		polled:  make(map[string]types.Node),
		retries: make(map[string]int),
		host:    host,
	}
}

// sendFunc is spec.md §4.1's send(node): issues the operation-specific
// query, registers the expected reply with the inbox, and records node as
// polled and pending.
type sendFunc func(L *lookupState, node types.Node)

// decisionKind tags what onCommand decided to do with a received command.
type decisionKind int

const (
	decisionTerminal decisionKind = iota
	decisionContinue
	decisionIgnore
)

// decision is onCommand's answer: a terminal engineResult, a set of nodes
// to hand to continueLookup, or "ignored, keep waiting" — spec.md §4.1's
// onCommand(command) -> R.
type decision struct {
	kind   decisionKind
	result engineResult
	nodes  []types.Node
}

type onCommandFunc func(L *lookupState, cmd types.Message) decision

// endFunc and cancelFunc are spec.md §4.1's two terminal actions: end for
// "reached the frontier, perform a final side effect", cancel for "no more
// useful work".
type endFunc func(L *lookupState) engineResult
type cancelFunc func(L *lookupState) engineResult

// makeSend builds the send(node) callback common to every operation
// driver: build the command, register the expected reply kinds, record
// bookkeeping, transmit. Grounded in the teacher's SendFindNodeMessage /
// SendFindValueMessage (peer/impl/dht.go), which perform the same four
// steps inline per call site; unified here since spec.md §4.1 describes
// send as one operation-parametric callback rather than one per query
// kind.
func makeSend(host engineHost, buildCommand func(requestID string) types.Message, expectedKinds []string) sendFunc {
	return func(L *lookupState, node types.Node) {
		id := node.ID.String()
		L.known[id] = node
		L.polled[id] = node
		L.pending[id] = node

		requestID := xid.New().String()
		cmd := buildCommand(requestID)
		L.inbox.register(requestID, node.ID, expectedKinds, host.ackTimeout())
		host.transmit(node, cmd)
	}
}

// runEngine is the iterative lookup state machine, spec.md §4.1. seed is
// the initial frontier: for lookup/store it is the α nearest peers the
// caller already pulled from the routing view (seedAlone=false), for
// joinNetwork it is the single supplied seed node (seedAlone=true, §4.1.1:
// "the engine does not preload α nearest known peers; instead it sends
// one query to seed").
func runEngine(target types.Identifier, host engineHost, seed []types.Node, send sendFunc, onCommand onCommandFunc, cancel cancelFunc, end endFunc) engineResult {
	L := newLookupState(target, host)

	if len(seed) == 0 {
		return cancel(L)
	}
	for _, n := range seed {
		send(L, n)
	}

	return waitForReply(L, send, onCommand, cancel, end)
}

// waitForReply is spec.md §4.1.3: blocks on the inbox, dispatches
// ANSWER/TIMEOUT/CLOSED.
func waitForReply(L *lookupState, send sendFunc, onCommand onCommandFunc, cancel cancelFunc, end endFunc) engineResult {
	for {
		ev := L.inbox.recv()

		switch ev.kind {
		case answerEvent:
			node := ev.answer.source
			L.host.routing().insert(node)
			delete(L.pending, node.ID.String())

			dec := onCommand(L, ev.answer.command)
			switch dec.kind {
			case decisionTerminal:
				return dec.result
			case decisionContinue:
				result, terminal := continueLookup(L, dec.nodes, send, end)
				if terminal {
					return result
				}
			case decisionIgnore:
				// no progress; keep waiting, per store's "any other
				// RETURN_* is ignored" (§4.1.1).
			}

		case timeoutEvent:
			id := ev.timeout
			node, known := L.polled[id.String()]
			if !known {
				// the reply-inbox contract guarantees otherwise; nothing
				// to do if it were ever violated.
				continue
			}

			delete(L.pending, id.String())
			if L.retries[id.String()] < peer.RetryCount {
				L.retries[id.String()]++
				send(L, node)
			} else {
				L.host.routing().delete(id)
				delete(L.known, id.String())
				delete(L.polled, id.String())
				delete(L.retries, id.String())
			}

			if len(L.pending) > 0 {
				continue
			}
			return cancel(L)

		case closedEvent:
			return cancel(L)
		}
	}
}

// continueLookup is spec.md §4.1.4's progress policy. It returns the
// engine's terminal result and true if the lookup is done (end was
// invoked), or (nil, false) if the caller should go back to waitForReply.
func continueLookup(L *lookupState, nodes []types.Node, send sendFunc, end endFunc) (engineResult, bool) {
	union := unionNodes(nodes, mapValues(L.known))
	newKnown := take(excludeKnown(union, L.polled), peer.K)

	closestCandidates := unionNodes(newKnown, mapValues(L.polled))
	closest := take(sortedByDistance(closestCandidates, L.target), peer.K)
	closestPolled := allKnown(closest, L.polled)

	if len(newKnown) > 0 && !closestPolled {
		nearest := sortedByDistance(newKnown, L.target)[0]
		L.known = sliceToSet(newKnown)
		send(L, nearest)
		return nil, false
	}
	if len(L.pending) > 0 {
		return nil, false
	}
	return end(L), true
}

// -----------------------------------------------------------------------------
// Frontier set helpers. Plain functions over []types.Node / map[string]types.Node
// rather than a dedicated set type — the teacher's own Set
// (peer/impl/dht_data_structures.go) is a single flat string set with no
// notion of node identity beyond a key, which these operations need just
// as much; reimplemented narrowly here rather than widened there.

func mapValues(m map[string]types.Node) []types.Node {
	nodes := make([]types.Node, 0, len(m))
	for _, n := range m {
		nodes = append(nodes, n)
	}
	return nodes
}

func sliceToSet(nodes []types.Node) map[string]types.Node {
	m := make(map[string]types.Node, len(nodes))
	for _, n := range nodes {
		m[n.ID.String()] = n
	}
	return m
}

// unionNodes concatenates a and b, deduplicating by id and preserving a's
// order first. Order is not semantically required by §4.1.4 step 1, but a
// stable order keeps tests deterministic.
func unionNodes(a, b []types.Node) []types.Node {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]types.Node, 0, len(a)+len(b))
	for _, n := range a {
		if !seen[n.ID.String()] {
			seen[n.ID.String()] = true
			out = append(out, n)
		}
	}
	for _, n := range b {
		if !seen[n.ID.String()] {
			seen[n.ID.String()] = true
			out = append(out, n)
		}
	}
	return out
}

func excludeKnown(nodes []types.Node, exclude map[string]types.Node) []types.Node {
	out := make([]types.Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := exclude[n.ID.String()]; !ok {
			out = append(out, n)
		}
	}
	return out
}

func take(nodes []types.Node, n int) []types.Node {
	if len(nodes) <= n {
		return nodes
	}
	return nodes[:n]
}

func sortedByDistance(nodes []types.Node, target types.Identifier) []types.Node {
	out := make([]types.Node, len(nodes))
	copy(out, nodes)
	sort.Slice(out, func(i, j int) bool {
		return types.CloserTo(target, out[i].ID, out[j].ID)
	})
	return out
}

func allKnown(nodes []types.Node, set map[string]types.Node) bool {
	for _, n := range nodes {
		if _, ok := set[n.ID.String()]; !ok {
			return false
		}
	}
	return true
}
