// Package udp implements transport.Transport over a UDP socket, kept close
// to the teacher's transport/udp/mod.go — wire framing is explicitly out of
// spec.md's scope (§1), so this file changes only what the renamed
// transport types and the GoVector causal-logging envelope require.
package udp

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"time"

	"github.com/DistributedClocks/GoVector/govec"

	"go.dedis.ch/kademlia/transport"
)

const bufSize = 65000

// NewUDP returns a new udp transport implementation.
func NewUDP() transport.Transport {
	return &UDP{}
}

// UDP implements a transport layer using UDP.
//
// - implements transport.Transport
type UDP struct{}

// CreateSocket implements transport.Transport.
func (u *UDP) CreateSocket(address string) (transport.ClosableSocket, error) {
	pc, err := net.ListenPacket("udp", address)
	if err != nil {
		return &Socket{}, err
	}

	logger := govec.InitGoVector(address, "kademlia-"+safeFileName(address), govec.GetDefaultConfig())

	return &Socket{pc: pc, logger: logger}, nil
}

// safeFileName strips characters GoVector's log file name can't carry, e.g.
// the ':' in "127.0.0.1:1234".
func safeFileName(address string) string {
	out := make([]rune, 0, len(address))
	for _, r := range address {
		if r == ':' || r == '/' {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out)
}

// Socket implements a network socket using UDP.
//
// - implements transport.Socket
// - implements transport.ClosableSocket
type Socket struct {
	pc     net.PacketConn
	logger *govec.GoLog

	ins  transport.PacketLog
	outs transport.PacketLog
}

// Close implements transport.Socket. It returns an error if already closed.
func (s *Socket) Close() error {
	return s.pc.Close()
}

// Send implements transport.Socket.
func (s *Socket) Send(dest string, pkt transport.Packet, timeout time.Duration) error {
	raddr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return err
	}

	bytes, err := marshalPacket(pkt)
	if err != nil {
		return err
	}

	// Wrap with a vector timestamp so a captured trace can be causally
	// ordered during debugging of lookup convergence (SPEC_FULL.md,
	// ambient stack: causal/event logging).
	envelope := s.logger.PrepareSend("send "+pkt.Msg.Type+" to "+dest, bytes, govec.GetDefaultLogOptions())

	if timeout == 0 {
		s.pc.SetWriteDeadline(time.Time{})
	} else {
		s.pc.SetWriteDeadline(time.Now().Add(timeout))
	}

	writtenBytes, err := s.pc.WriteTo(envelope, raddr)
	if err != nil {
		if os.IsTimeout(err) {
			return transport.TimeoutErr(timeout)
		}
		return err
	}
	if writtenBytes < len(envelope) {
		return errors.New("[transport.udp.Socket.Send]: didn't write all bytes")
	}

	s.outs.Add(pkt)

	return nil
}

// Recv implements transport.Socket. It blocks until a packet is received,
// or the timeout is reached. In the case the timeout is reached, it returns
// a TimeoutErr.
func (s *Socket) Recv(timeout time.Duration) (transport.Packet, error) {
	if timeout == 0 {
		s.pc.SetReadDeadline(time.Time{})
	} else {
		s.pc.SetReadDeadline(time.Now().Add(timeout))
	}

	buffer := make([]byte, bufSize)

	n, _, err := s.pc.ReadFrom(buffer)
	if err != nil {
		if os.IsTimeout(err) {
			return transport.Packet{}, transport.TimeoutErr(timeout)
		}
		return transport.Packet{}, err
	}

	var raw []byte
	s.logger.UnpackReceive("recv datagram", buffer[0:n], &raw, govec.GetDefaultLogOptions())

	pkt, err := unmarshalPacket(raw)
	if err != nil {
		return transport.Packet{}, err
	}
	s.ins.Add(pkt)

	return pkt, nil
}

// GetAddress implements transport.Socket. It returns the address assigned.
// Can be useful in the case one provided a :0 address, which makes the
// system use a random free port.
func (s *Socket) GetAddress() string {
	return s.pc.LocalAddr().String()
}

// GetIns returns a snapshot of every packet received so far. Test-only.
func (s *Socket) GetIns() []transport.Packet {
	return s.ins.GetAll()
}

// GetOuts returns a snapshot of every packet sent so far. Test-only.
func (s *Socket) GetOuts() []transport.Packet {
	return s.outs.GetAll()
}

func marshalPacket(pkt transport.Packet) ([]byte, error) {
	return json.Marshal(pkt)
}

func unmarshalPacket(data []byte) (transport.Packet, error) {
	var pkt transport.Packet
	err := json.Unmarshal(data, &pkt)
	return pkt, err
}
