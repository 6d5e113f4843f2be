package types

// Node is the pair (id, peer address) spec.md §3 calls N. It is the wire
// and in-memory representation of a DHT contact, renamed from the teacher's
// types.Contact to match spec.md's vocabulary.
type Node struct {
	ID   Identifier
	Addr string
}

// Equal compares nodes by id alone, per spec.md §3: "Equality is by id."
func (n Node) Equal(other Node) bool {
	return n.ID.Equal(other.ID)
}
