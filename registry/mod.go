// Package registry maps wire message type names to the types.Message zero
// values and callbacks that process them, mirroring the teacher's
// conf.MessageRegistry field (go.dedis.ch/cs438/registry, not present in the
// retrieved pack — only its call sites are, e.g. peer/impl/mod.go's
// conf.MessageRegistry.RegisterMessageCallback calls).
package registry

import (
	"go.dedis.ch/kademlia/transport"
	"go.dedis.ch/kademlia/types"
)

// Exec is invoked for every packet whose Msg.Type matches a registered
// message. It receives the unmarshaled message and the packet it arrived
// in (the packet header is how the background responder recovers the
// Node a Signal's source — spec.md §3: "the transport reconstructs the
// source N from the datagram envelope").
type Exec func(msg types.Message, pkt transport.Packet) error

// Registry marshals outgoing messages, unmarshals incoming ones, and
// dispatches them to the callback registered for their wire name.
type Registry interface {
	RegisterMessageCallback(msg types.Message, exec Exec)
	MarshalMessage(msg types.Message) (transport.Message, error)
	ProcessPacket(pkt transport.Packet) error
}
