package impl

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"go.dedis.ch/kademlia/peer"
	"go.dedis.ch/kademlia/transport"
	"go.dedis.ch/kademlia/types"
)

// senderOf reconstructs the Signal source N from a packet's envelope,
// spec.md §3: "the transport reconstructs the source N from the datagram
// envelope." Grounded in the teacher's *Exec handlers, which instead
// recovered a bare address from pkt.Header.Source; this repository also
// needs the sender's id, carried in Header.SourceID (transport/mod.go).
func senderOf(pkt transport.Packet) (types.Node, error) {
	id, ok := types.IdentifierFromHex(pkt.Header.SourceID)
	if !ok {
		return types.Node{}, xerrors.Errorf("malformed sender id %q", pkt.Header.SourceID)
	}
	return types.Node{ID: id, Addr: pkt.Header.Source}, nil
}

// pingExec and the rest of this file are the background responder,
// spec.md §4.3: "Independently answers incoming PING/FIND_NODE/
// FIND_VALUE/STORE... not the lookup engine's concern but must exist for
// the network to function." Grounded in the teacher's
// FindNodeRequestExec/FindValueRequestExec/StoreRequestExec
// (peer/impl/dht_handlers.go); pingExec/pongExec are new, filling the
// teacher's unimplemented "// TODO: ping".
func (n *node) pingExec(msg types.Message, pkt transport.Packet) error {
	_, ok := msg.(*types.Ping)
	if !ok {
		return xerrors.New("pingExec: wrong message type")
	}

	sender, err := senderOf(pkt)
	if err != nil {
		return err
	}
	n.rt.insert(sender)

	n.transmit(sender, &types.Pong{})
	return nil
}

func (n *node) pongExec(msg types.Message, pkt transport.Packet) error {
	_, ok := msg.(*types.Pong)
	if !ok {
		return xerrors.New("pongExec: wrong message type")
	}

	sender, err := senderOf(pkt)
	if err != nil {
		return err
	}
	n.rt.insert(sender)
	return nil
}

func (n *node) findNodeExec(msg types.Message, pkt transport.Packet) error {
	req, ok := msg.(*types.FindNode)
	if !ok {
		return xerrors.New("findNodeExec: wrong message type")
	}

	sender, err := senderOf(pkt)
	if err != nil {
		return err
	}
	n.rt.insert(sender)

	closest := n.rt.closestKnown(req.Target, peer.K)
	n.transmit(sender, &types.ReturnNodes{RequestID: req.RequestID, Target: req.Target, Nodes: closest})
	return nil
}

func (n *node) findValueExec(msg types.Message, pkt transport.Packet) error {
	req, ok := msg.(*types.FindValue)
	if !ok {
		return xerrors.New("findValueExec: wrong message type")
	}

	sender, err := senderOf(pkt)
	if err != nil {
		return err
	}
	n.rt.insert(sender)

	if value, found := n.store.get(req.Target); found {
		n.transmit(sender, &types.ReturnValue{RequestID: req.RequestID, Target: req.Target, Value: value})
		return nil
	}

	closest := n.rt.closestKnown(req.Target, peer.K)
	n.transmit(sender, &types.ReturnNodes{RequestID: req.RequestID, Target: req.Target, Nodes: closest})
	return nil
}

func (n *node) storeExec(msg types.Message, pkt transport.Packet) error {
	req, ok := msg.(*types.Store)
	if !ok {
		return xerrors.New("storeExec: wrong message type")
	}

	sender, err := senderOf(pkt)
	if err != nil {
		return err
	}
	n.rt.insert(sender)

	n.store.set(req.Key, req.Value)
	return nil
}

// returnNodesExec and returnValueExec demultiplex replies to the node's
// own outstanding lookups, spec.md §4.3's "registration of the expected
// reply kinds for a (peer, command) pair so the inbox can correlate." A
// reply with no matching registration (late, duplicate, or unsolicited)
// is dropped; the routing-view insert on a genuine ANSWER happens inside
// the engine's waitForReply (spec.md §4.1.3 step 1), not here.
func (n *node) returnNodesExec(msg types.Message, pkt transport.Packet) error {
	rn, ok := msg.(*types.ReturnNodes)
	if !ok {
		return xerrors.New("returnNodesExec: wrong message type")
	}

	sender, err := senderOf(pkt)
	if err != nil {
		return err
	}

	if !n.rtr.deliver(rn.RequestID, signal{source: sender, command: rn}) {
		log.Debug().Msgf("kademlia: dropped unmatched returnnodes from %s", sender.Addr)
	}
	return nil
}

func (n *node) returnValueExec(msg types.Message, pkt transport.Packet) error {
	rv, ok := msg.(*types.ReturnValue)
	if !ok {
		return xerrors.New("returnValueExec: wrong message type")
	}

	sender, err := senderOf(pkt)
	if err != nil {
		return err
	}

	if !n.rtr.deliver(rv.RequestID, signal{source: sender, command: rv}) {
		log.Debug().Msgf("kademlia: dropped unmatched returnvalue from %s", sender.Addr)
	}
	return nil
}
