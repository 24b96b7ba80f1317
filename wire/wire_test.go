package wire

import (
	"net"
	"testing"

	"github.com/aistore-labs/plumcast/nodeid"
	"github.com/stretchr/testify/require"
)

func v4Addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func v6Addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("::1"), Port: port}
}

func TestSocketAddrRoundTripV4(t *testing.T) {
	addr := v4Addr(9000)
	buf := AppendSocketAddr(nil, addr)
	require.Equal(t, SocketAddrLen(addr), len(buf))
	require.Equal(t, byte(4), buf[0])

	got, n, err := DecodeSocketAddr(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, addr.IP.To4(), got.IP.To4())
	require.Equal(t, addr.Port, got.Port)
}

func TestSocketAddrRoundTripV6(t *testing.T) {
	addr := v6Addr(9001)
	buf := AppendSocketAddr(nil, addr)
	require.Equal(t, byte(6), buf[0])
	require.Equal(t, 1+16+2+4+4, len(buf))

	got, n, err := DecodeSocketAddr(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.True(t, addr.IP.Equal(got.IP))
	require.Equal(t, addr.Port, got.Port)
}

func TestSocketAddrRejectsBadVersionTag(t *testing.T) {
	buf := []byte{9, 1, 2, 3, 4, 0, 0}
	_, _, err := DecodeSocketAddr(buf)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSocketAddrShortBuffer(t *testing.T) {
	addr := v4Addr(1234)
	full := AppendSocketAddr(nil, addr)
	_, _, err := DecodeSocketAddr(full[:len(full)-1])
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestNodeIdRoundTrip(t *testing.T) {
	id := nodeid.NewNodeId(v4Addr(7000), 42)
	buf := AppendNodeId(nil, id)
	got, n, err := DecodeNodeId(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.True(t, id.Equal(got))
}

func TestMessageIdRoundTrip(t *testing.T) {
	node := nodeid.NewNodeId(v4Addr(7001), 1)
	id := nodeid.NewMessageId(node, 99)
	buf := AppendMessageId(nil, id)
	got, n, err := DecodeMessageId(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.True(t, id.Equal(got))
}

func TestJoinRoundTrip(t *testing.T) {
	m := JoinMessage{Destination: 5, Sender: nodeid.NewNodeId(v4Addr(8000), 1)}
	buf := AppendJoin(nil, m)
	got, n, err := DecodeJoin(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, m.Destination, got.Destination)
	require.True(t, m.Sender.Equal(got.Sender))
}

func TestForwardJoinRoundTrip(t *testing.T) {
	m := ForwardJoinMessage{
		Destination: 5,
		Sender:      nodeid.NewNodeId(v4Addr(8000), 1),
		NewNode:     nodeid.NewNodeId(v4Addr(8001), 2),
		TTL:         3,
	}
	buf := AppendForwardJoin(nil, m)
	got, n, err := DecodeForwardJoin(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, m.TTL, got.TTL)
	require.True(t, m.NewNode.Equal(got.NewNode))
}

func TestNeighborRoundTrip(t *testing.T) {
	m := NeighborMessage{Destination: 1, Sender: nodeid.NewNodeId(v4Addr(8002), 1), HighPriority: true}
	buf := AppendNeighbor(nil, m)
	got, n, err := DecodeNeighbor(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.True(t, got.HighPriority)
}

func TestShuffleRoundTripEmptyAndNonEmptyNodes(t *testing.T) {
	base := ShuffleMessage{
		Destination: 1,
		Sender:      nodeid.NewNodeId(v4Addr(8003), 1),
		Origin:      nodeid.NewNodeId(v4Addr(8004), 2),
		TTL:         7,
	}

	buf := AppendShuffle(nil, base)
	got, n, err := DecodeShuffle(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Empty(t, got.Nodes)

	base.Nodes = []nodeid.NodeId{
		nodeid.NewNodeId(v4Addr(8005), 3),
		nodeid.NewNodeId(v6Addr(8006), 4),
	}
	buf = AppendShuffle(nil, base)
	got, n, err = DecodeShuffle(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Len(t, got.Nodes, 2)
	require.True(t, base.Nodes[0].Equal(got.Nodes[0]))
	require.True(t, base.Nodes[1].Equal(got.Nodes[1]))
}

func TestShuffleReplyRoundTrip(t *testing.T) {
	m := ShuffleReplyMessage{
		Destination: 1,
		Sender:      nodeid.NewNodeId(v4Addr(8007), 1),
		Nodes:       []nodeid.NodeId{nodeid.NewNodeId(v4Addr(8008), 2)},
	}
	buf := AppendShuffleReply(nil, m)
	got, n, err := DecodeShuffleReply(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Len(t, got.Nodes, 1)
}

func TestDisconnectRoundTrip(t *testing.T) {
	m := DisconnectMessage{Destination: 1, Sender: nodeid.NewNodeId(v4Addr(8009), 1), Alive: false}
	buf := AppendDisconnect(nil, m)
	got, n, err := DecodeDisconnect(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.False(t, got.Alive)
}

func TestGossipRoundTrip(t *testing.T) {
	origin := nodeid.NewNodeId(v4Addr(9100), 1)
	m := GossipMessage{
		Destination: 9,
		Sender:      nodeid.NewNodeId(v4Addr(9101), 2),
		Round:       3,
		ID:          nodeid.NewMessageId(origin, 100),
		Payload:     []byte("hello plumtree"),
	}
	buf := AppendGossip(nil, m)
	got, n, err := DecodeGossip(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, m.Payload, got.Payload)
	require.Equal(t, m.Round, got.Round)
	require.True(t, m.ID.Equal(got.ID))
}

// The exact byte sequence for a Gossip frame is a compatibility
// surface: peers built from other codebases must produce and accept
// these same bytes. If this test breaks, the wire format changed.
func TestGossipWireFormatIsPinned(t *testing.T) {
	sender := nodeid.NewNodeId(v4Addr(9000), 0x0A)
	m := GossipMessage{
		Destination: 1,
		Sender:      sender,
		Round:       3,
		ID:          nodeid.NewMessageId(sender, 42),
		Payload:     []byte("hi"),
	}
	want := []byte{
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, // destination
		0x04, 0x7F, 0x00, 0x00, 0x01, 0x23, 0x28, // sender addr: v4 tag, 127.0.0.1, port 9000
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0A, // sender local id
		0x00, 0x03, // round
		0x04, 0x7F, 0x00, 0x00, 0x01, 0x23, 0x28, // msg id: origin addr
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0A, // msg id: origin local id
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2A, // msg id: seqno 42
		0x00, 0x00, 0x00, 0x02, // payload size
		'h', 'i',
	}
	require.Equal(t, want, AppendGossip(nil, m))
}

func TestGossipRoundTripEmptyPayload(t *testing.T) {
	origin := nodeid.NewNodeId(v4Addr(9102), 1)
	m := GossipMessage{
		Destination: 1,
		Sender:      nodeid.NewNodeId(v4Addr(9103), 2),
		ID:          nodeid.NewMessageId(origin, 1),
	}
	buf := AppendGossip(nil, m)
	got, n, err := DecodeGossip(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Empty(t, got.Payload)
}

func TestIhaveRoundTrip(t *testing.T) {
	origin := nodeid.NewNodeId(v4Addr(9200), 1)
	m := IhaveMessage{
		Destination: 1,
		Sender:      nodeid.NewNodeId(v4Addr(9201), 2),
		MessageID:   nodeid.NewMessageId(origin, 5),
		Round:       2,
		Realtime:    true,
	}
	buf := AppendIhave(nil, m)
	got, n, err := DecodeIhave(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.True(t, got.Realtime)
	require.True(t, m.MessageID.Equal(got.MessageID))
}

func TestGraftRoundTripWithAndWithoutMessageId(t *testing.T) {
	origin := nodeid.NewNodeId(v4Addr(9300), 1)
	id := nodeid.NewMessageId(origin, 7)
	m := GraftMessage{Destination: 1, Sender: nodeid.NewNodeId(v4Addr(9301), 2), MessageID: &id, Round: 4}
	buf := AppendGraft(nil, m)
	require.Equal(t, byte(1), buf[8+SocketAddrLen(v4Addr(9301))+8])
	got, n, err := DecodeGraft(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.NotNil(t, got.MessageID)
	require.True(t, id.Equal(*got.MessageID))

	m.MessageID = nil
	buf = AppendGraft(nil, m)
	got, n, err = DecodeGraft(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Nil(t, got.MessageID)
	require.Equal(t, m.Round, got.Round)
}

func TestGraftRejectsInvalidPresenceByte(t *testing.T) {
	m := GraftMessage{Destination: 1, Sender: nodeid.NewNodeId(v4Addr(9302), 2)}
	buf := AppendGraft(nil, m)
	presenceOffset := 8 + SocketAddrLen(v4Addr(9302)) + 8
	buf[presenceOffset] = 2
	_, _, err := DecodeGraft(buf)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestPruneRoundTrip(t *testing.T) {
	m := PruneMessage{Destination: 1, Sender: nodeid.NewNodeId(v4Addr(9400), 2)}
	buf := AppendPrune(nil, m)
	got, n, err := DecodePrune(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.True(t, m.Sender.Equal(got.Sender))
}

func TestDecoderFeedsAcrossChunks(t *testing.T) {
	m := JoinMessage{Destination: 1, Sender: nodeid.NewNodeId(v4Addr(8500), 2)}
	full := AppendJoin(nil, m)

	d := NewDecoder(DecodeJoin)
	mid := len(full) / 2
	_, ok, err := d.Feed(full[:mid])
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, mid, d.Pending())

	got, ok, err := d.Feed(full[mid:])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m.Destination, got.Destination)
	require.Zero(t, d.Pending())
}

func TestDecoderCarriesExtraBytesToNextFrame(t *testing.T) {
	m1 := PruneMessage{Destination: 1, Sender: nodeid.NewNodeId(v4Addr(8600), 1)}
	m2 := PruneMessage{Destination: 2, Sender: nodeid.NewNodeId(v4Addr(8601), 2)}
	buf := append(AppendPrune(nil, m1), AppendPrune(nil, m2)...)

	d := NewDecoder(DecodePrune)
	got1, ok, err := d.Feed(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m1.Destination, got1.Destination)

	got2, ok, err := d.Feed(nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m2.Destination, got2.Destination)
}
