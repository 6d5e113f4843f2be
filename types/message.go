package types

import "fmt"

// Message is implemented by every command payload the registry knows how to
// marshal and dispatch. The NewEmpty/Name/String/HTML quartet matches the
// teacher's types.Message implementations in types/dht.go, kept so the
// registry can look up a zero value by wire name and produce a human
// readable trace without reflection.
type Message interface {
	NewEmpty() Message
	Name() string
	String() string
	HTML() string
}

// -----------------------------------------------------------------------------
// Ping / Pong — spec.md §3, never implemented by the teacher (its
// peer/impl/dht_handlers.go has a lone "// TODO: ping").

// Ping carries no payload; any node may send it to check liveness.
type Ping struct{}

func (m Ping) NewEmpty() Message { return &Ping{} }
func (m Ping) Name() string      { return "ping" }
func (m Ping) String() string    { return "ping" }
func (m Ping) HTML() string      { return m.String() }

// Pong answers a Ping.
type Pong struct{}

func (m Pong) NewEmpty() Message { return &Pong{} }
func (m Pong) Name() string      { return "pong" }
func (m Pong) String() string    { return "pong" }
func (m Pong) HTML() string      { return m.String() }

// -----------------------------------------------------------------------------
// Store

// Store asks the recipient to record key/value in its local value map.
type Store struct {
	Key   Identifier
	Value []byte
}

func (m Store) NewEmpty() Message { return &Store{} }
func (m Store) Name() string      { return "store" }
func (m Store) String() string    { return fmt.Sprintf("store(%s)", m.Key) }
func (m Store) HTML() string      { return m.String() }

// -----------------------------------------------------------------------------
// FindNode

// FindNode requests the K closest nodes the recipient knows to Target.
type FindNode struct {
	RequestID string
	Target    Identifier
}

func (m FindNode) NewEmpty() Message { return &FindNode{} }
func (m FindNode) Name() string      { return "findnode" }
func (m FindNode) String() string    { return fmt.Sprintf("findnode(%s)", m.Target) }
func (m FindNode) HTML() string      { return m.String() }

// -----------------------------------------------------------------------------
// FindValue

// FindValue requests the value stored under Target, or failing that the K
// closest nodes the recipient knows to it.
type FindValue struct {
	RequestID string
	Target    Identifier
}

func (m FindValue) NewEmpty() Message { return &FindValue{} }
func (m FindValue) Name() string      { return "findvalue" }
func (m FindValue) String() string    { return fmt.Sprintf("findvalue(%s)", m.Target) }
func (m FindValue) HTML() string      { return m.String() }

// -----------------------------------------------------------------------------
// ReturnNodes

// ReturnNodes answers a FindNode (or a FindValue that missed locally) with
// up to K contacts, per spec.md §6's wire table.
type ReturnNodes struct {
	RequestID string
	Target    Identifier
	Nodes     []Node
}

func (m ReturnNodes) NewEmpty() Message { return &ReturnNodes{} }
func (m ReturnNodes) Name() string      { return "returnnodes" }
func (m ReturnNodes) String() string {
	return fmt.Sprintf("returnnodes(%s, %d nodes)", m.Target, len(m.Nodes))
}
func (m ReturnNodes) HTML() string { return m.String() }

// -----------------------------------------------------------------------------
// ReturnValue

// ReturnValue answers a FindValue that hit locally.
type ReturnValue struct {
	RequestID string
	Target    Identifier
	Value     []byte
}

func (m ReturnValue) NewEmpty() Message { return &ReturnValue{} }
func (m ReturnValue) Name() string      { return "returnvalue" }
func (m ReturnValue) String() string    { return fmt.Sprintf("returnvalue(%s)", m.Target) }
func (m ReturnValue) HTML() string      { return m.String() }
