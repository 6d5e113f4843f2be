package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.dedis.ch/kademlia/transport"
)

func TestTransport_SendDeliversToDestination(t *testing.T) {
	tr := NewTransport()

	a, err := tr.CreateSocket("a:0")
	require.NoError(t, err)
	defer a.Close()

	b, err := tr.CreateSocket("b:0")
	require.NoError(t, err)
	defer b.Close()

	msg := transport.Message{Type: "ping"}
	header := transport.NewHeader("idA", a.GetAddress(), a.GetAddress(), b.GetAddress(), 0)
	pkt := transport.Packet{Header: &header, Msg: &msg}

	require.NoError(t, a.Send(b.GetAddress(), pkt, time.Second))

	got, err := b.Recv(time.Second)
	require.NoError(t, err)
	require.Equal(t, "ping", got.Msg.Type)
}

func TestTransport_SendToUnknownAddressIsSilentlyDropped(t *testing.T) {
	tr := NewTransport()
	a, err := tr.CreateSocket("a:0")
	require.NoError(t, err)
	defer a.Close()

	msg := transport.Message{Type: "ping"}
	header := transport.NewHeader("idA", a.GetAddress(), a.GetAddress(), "nowhere:0", 0)
	pkt := transport.Packet{Header: &header, Msg: &msg}

	require.NoError(t, a.Send("nowhere:0", pkt, time.Second))
}

func TestTransport_RecvTimesOut(t *testing.T) {
	tr := NewTransport()
	a, err := tr.CreateSocket("a:0")
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Recv(10 * time.Millisecond)
	require.Error(t, err)
	require.IsType(t, transport.TimeoutErr(0), err)
}

func TestTransport_DropFuncBlocksDelivery(t *testing.T) {
	tr := NewTransport()
	a, err := tr.CreateSocket("a:0")
	require.NoError(t, err)
	defer a.Close()
	b, err := tr.CreateSocket("b:0")
	require.NoError(t, err)
	defer b.Close()

	tr.SetDropFunc(func(src, dest string, msg transport.Message) bool { return true })

	msg := transport.Message{Type: "ping"}
	header := transport.NewHeader("idA", a.GetAddress(), a.GetAddress(), b.GetAddress(), 0)
	pkt := transport.Packet{Header: &header, Msg: &msg}
	require.NoError(t, a.Send(b.GetAddress(), pkt, time.Second))

	_, err = b.Recv(20 * time.Millisecond)
	require.Error(t, err)
}

func TestTransport_EphemeralAddressesAreUnique(t *testing.T) {
	tr := NewTransport()
	a, err := tr.CreateSocket(":0")
	require.NoError(t, err)
	defer a.Close()
	b, err := tr.CreateSocket(":0")
	require.NoError(t, err)
	defer b.Close()

	require.NotEqual(t, a.GetAddress(), b.GetAddress())
}
