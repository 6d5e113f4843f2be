// Package impl provides the concrete implementation of a Kademlia node:
// the routing view, local value store, reply-demultiplexing router,
// iterative lookup engine, and the background responder that answers
// incoming queries. Adapted from the teacher's peer/impl package.
package impl

import (
	"time"

	"github.com/rs/zerolog/log"

	"go.dedis.ch/kademlia/peer"
	"go.dedis.ch/kademlia/transport"
	"go.dedis.ch/kademlia/types"
)

// sendTimeout bounds how long a single Socket.Send call may block on
// transport congestion; distinct from peer.Configuration.AckTimeout,
// which bounds how long the engine waits for a reply.
const sendTimeout = time.Second

// NewPeer wires a Kademlia node: its routing view, local value store,
// shared reply router, and the background responder's message
// callbacks. Grounded in the teacher's NewPeer (peer/impl/mod.go), pared
// down to the collaborators spec.md §2 names — gossip, Paxos naming
// consensus, page rank, search, and website hosting are dropped; see
// DESIGN.md.
func NewPeer(conf peer.Configuration) peer.Peer {
	self := types.Node{
		ID:   types.IdentifierFromString(conf.Socket.GetAddress()),
		Addr: conf.Socket.GetAddress(),
	}

	n := &node{
		conf:  conf,
		self:  self,
		stop:  make(chan struct{}),
		rt:    newRoutingTable(self),
		store: newValueStore(conf.StorageQuota),
		rtr:   newReplyRouter(),
	}

	conf.MessageRegistry.RegisterMessageCallback(&types.Ping{}, n.pingExec)
	conf.MessageRegistry.RegisterMessageCallback(&types.Pong{}, n.pongExec)
	conf.MessageRegistry.RegisterMessageCallback(&types.FindNode{}, n.findNodeExec)
	conf.MessageRegistry.RegisterMessageCallback(&types.FindValue{}, n.findValueExec)
	conf.MessageRegistry.RegisterMessageCallback(&types.Store{}, n.storeExec)
	conf.MessageRegistry.RegisterMessageCallback(&types.ReturnNodes{}, n.returnNodesExec)
	conf.MessageRegistry.RegisterMessageCallback(&types.ReturnValue{}, n.returnValueExec)

	return n
}

// node implements peer.Peer. It satisfies engineHost directly, so the
// lookup engine (engine.go) can drive a node without any further
// adapter.
type node struct {
	conf peer.Configuration
	self types.Node

	running bool
	stop    chan struct{}

	rt    *routingTable
	store *valueStore
	rtr   *replyRouter
}

// -----------------------------------------------------------------------------
// engineHost

func (n *node) routing() *routingTable    { return n.rt }
func (n *node) router() *replyRouter      { return n.rtr }
func (n *node) ackTimeout() time.Duration { return n.conf.AckTimeout }

// transmit is the engine's send primitive, spec.md §4.3: "send(peer,
// command) is non-blocking, lossy, unordered." A transport error is
// swallowed here per spec.md §4.1.5: the reply inbox's timer will
// eventually synthesize a TIMEOUT for whatever registration this send
// was paired with.
func (n *node) transmit(dest types.Node, msg types.Message) {
	if err := n.directSend(dest.Addr, msg); err != nil {
		log.Debug().Msgf("kademlia: send to %s failed: %s", dest.Addr, err.Error())
	}
}

// -----------------------------------------------------------------------------
// peer.KademliaDHT

func (n *node) Lookup(target types.Identifier) ([]byte, bool) {
	return runLookup(n, target)
}

func (n *node) Store(key types.Identifier, value []byte) {
	runStore(n, key, value)
}

func (n *node) JoinNetwork(seed types.Node) {
	runJoinNetwork(n, seed)
}

func (n *node) ClosestKnown(target types.Identifier, count int) []types.Node {
	return n.rt.closestKnown(target, count)
}

func (n *node) OwnID() types.Identifier {
	return n.rt.ownID()
}

// -----------------------------------------------------------------------------
// peer.Service

// Start implements peer.Service, matching the shape of the teacher's
// node.Start (peer/impl/mod.go): a single receive loop handing every
// packet addressed here to the message registry, each on its own
// goroutine so a slow handler cannot stall the socket. Unlike the
// teacher, there is no relay branch — the lookup engine always addresses
// peers directly (spec.md §4.3).
func (n *node) Start() error {
	n.running = true

	go func() {
		for {
			select {
			case <-n.stop:
				return
			default:
				pkt, err := n.conf.Socket.Recv(time.Second)
				if _, ok := err.(transport.TimeoutErr); ok {
					continue
				}
				if err != nil {
					log.Error().Msgf("kademlia: recv error: %s", err.Error())
					continue
				}

				go func(pkt transport.Packet) {
					if err := n.conf.MessageRegistry.ProcessPacket(pkt); err != nil {
						log.Error().Msgf("kademlia: process packet error: %s", err.Error())
					}
				}(pkt)
			}
		}
	}()

	return nil
}

// Stop implements peer.Service.
func (n *node) Stop() error {
	if n.running {
		close(n.stop)
	}
	n.running = false
	return nil
}

// directSend marshals and fire-and-forget-sends msg to dest, stamping the
// envelope with this node's own id and address so the recipient can
// reconstruct the Signal source (spec.md §3). Grounded in the teacher's
// node.DirectSend (peer/impl/mod.go).
func (n *node) directSend(dest string, msg types.Message) error {
	transportMsg, err := n.conf.MessageRegistry.MarshalMessage(msg)
	if err != nil {
		return err
	}
	header := transport.NewHeader(n.self.ID.String(), n.self.Addr, n.self.Addr, dest, 0)
	pkt := transport.Packet{Header: &header, Msg: &transportMsg}
	return n.conf.Socket.Send(dest, pkt, sendTimeout)
}
