package peer

import "go.dedis.ch/kademlia/types"

// KademliaDHT is the external surface spec.md §6 names: the three
// operations the iterative lookup engine powers. Renamed and narrowed from
// the teacher's peer.KademliaDHT — UploadDHT/DownloadDHT (chunked-file
// hosting on top of the DHT) are dropped; spec.md treats the stored Value
// as an opaque payload and leaves any chunking scheme to the caller.
type KademliaDHT interface {
	// Lookup implements spec.md §4.1.1's lookup(target) -> Option<V>.
	Lookup(target types.Identifier) ([]byte, bool)

	// Store implements spec.md §4.1.1's store(key, value).
	Store(key types.Identifier, value []byte)

	// JoinNetwork implements spec.md §4.1.1's joinNetwork(seed).
	JoinNetwork(seed types.Node)

	// ClosestKnown exposes the routing view's closestKnown(target, n) —
	// spec.md §4.3 — for CLI introspection (cmd/kademlia's "peers").
	ClosestKnown(target types.Identifier, n int) []types.Node

	// OwnID exposes the routing view's ownId() — spec.md §4.3.
	OwnID() types.Identifier
}

// K is the bucket width and frontier size, spec.md §6: K = 7.
const K = 7

// Alpha is the initial query parallelism, spec.md §6: α = 3.
const Alpha = 3

// RetryCount is the number of retransmissions the engine allows per peer
// per lookup before evicting it, spec.md §6: "retry count = 1".
const RetryCount = 1
