// Package transport defines the framing the Kademlia node relies on to
// exchange datagrams: a Packet carrying a typed, marshaled Message over a
// Socket. Wire-format layout itself is out of spec.md's scope (§1); this
// package only fixes enough structure for the registry and engine above it
// to be testable, following the shape of the teacher's transport package.
package transport

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
)

// Message is a marshaled, typed payload ready to go on the wire.
type Message struct {
	Type    string
	Payload json.RawMessage
}

// Header carries packet routing metadata. RelayedBy/TTL are kept for parity
// with the teacher's transport.Header even though the lookup engine always
// addresses peers directly (spec.md §4.3: "Transport... send(peer, command)
// is non-blocking, lossy, unordered"); there is no multi-hop relay in this
// repository.
type Header struct {
	PacketID    string
	SourceID    string
	Source      string
	RelayedBy   string
	Destination string
	Timestamp   int64
	TTL         uint
}

// NewHeader builds a Header with a fresh packet id, matching
// transport.NewHeader in the teacher's peer/impl/mod.go call sites.
// SourceID carries the sending node's identifier (hex-encoded, see
// types.Identifier) alongside its address, so a recipient can reconstruct
// the full Signal source N = (id, addr) spec.md §3 requires "from the
// datagram envelope" without the command payloads themselves having to
// carry it.
func NewHeader(sourceID, source, relayedBy, destination string, ttl uint) Header {
	return Header{
		PacketID:    xid.New().String(),
		SourceID:    sourceID,
		Source:      source,
		RelayedBy:   relayedBy,
		Destination: destination,
		TTL:         ttl,
	}
}

// Packet is a Header plus the Message it carries.
type Packet struct {
	Header *Header
	Msg    *Message
}

// Copy returns a deep copy of the packet, mirroring transport.Packet.Copy in
// the teacher's udp socket (used there to give GetIns/GetOuts callers
// snapshots immune to later mutation).
func (p Packet) Copy() Packet {
	header := *p.Header
	msg := *p.Msg
	payload := make(json.RawMessage, len(msg.Payload))
	copy(payload, msg.Payload)
	msg.Payload = payload
	return Packet{Header: &header, Msg: &msg}
}

// TimeoutErr is returned by Socket.Send/Recv when the supplied deadline
// elapses, matching the teacher's transport.TimeoutErr(timeout) sentinel.
type TimeoutErr time.Duration

func (t TimeoutErr) Error() string {
	return fmt.Sprintf("timeout after %s", time.Duration(t))
}

// Socket is the minimal datagram interface the engine's collaborators rely
// on: non-blocking, lossy, unordered send (spec.md §4.3).
type Socket interface {
	Send(dest string, pkt Packet, timeout time.Duration) error
	Recv(timeout time.Duration) (Packet, error)
	GetAddress() string
}

// ClosableSocket is a Socket that can be shut down, matching the teacher's
// transport.ClosableSocket.
type ClosableSocket interface {
	Socket
	Close() error
}

// Transport creates sockets bound to an address.
type Transport interface {
	CreateSocket(address string) (ClosableSocket, error)
}

// PacketLog is a thread-safe append-only log of packets, shared by every
// Socket implementation's GetIns/GetOuts — grounded in the teacher's
// transport/udp/mod.go `packets` type.
type PacketLog struct {
	mu   sync.Mutex
	data []Packet
}

// Add appends pkt to the log.
func (p *PacketLog) Add(pkt Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append(p.data, pkt)
}

// GetAll returns a snapshot immune to later mutation of the logged packets.
func (p *PacketLog) GetAll() []Packet {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make([]Packet, len(p.data))
	for i, pkt := range p.data {
		res[i] = pkt.Copy()
	}
	return res
}
