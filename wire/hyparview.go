package wire

import "github.com/aistore-labs/plumcast/nodeid"

// Every HyParView frame carries a LocalNodeId destination as its first
// field: the registry uses it to route an inbound datagram to the
// right locally-registered Node without needing a per-node UDP port.

type JoinMessage struct {
	Destination nodeid.LocalNodeId
	Sender      nodeid.NodeId
}

func AppendJoin(buf []byte, m JoinMessage) []byte {
	buf = AppendLocalNodeId(buf, m.Destination)
	buf = AppendNodeId(buf, m.Sender)
	return buf
}

func DecodeJoin(buf []byte) (JoinMessage, int, error) {
	dest, n, err := DecodeLocalNodeId(buf)
	if err != nil {
		return JoinMessage{}, 0, err
	}
	sender, sn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return JoinMessage{}, 0, err
	}
	return JoinMessage{Destination: dest, Sender: sender}, n + sn, nil
}

type ForwardJoinMessage struct {
	Destination nodeid.LocalNodeId
	Sender      nodeid.NodeId
	NewNode     nodeid.NodeId
	TTL         uint8
}

func AppendForwardJoin(buf []byte, m ForwardJoinMessage) []byte {
	buf = AppendLocalNodeId(buf, m.Destination)
	buf = AppendNodeId(buf, m.Sender)
	buf = AppendNodeId(buf, m.NewNode)
	buf = append(buf, m.TTL)
	return buf
}

func DecodeForwardJoin(buf []byte) (ForwardJoinMessage, int, error) {
	dest, n, err := DecodeLocalNodeId(buf)
	if err != nil {
		return ForwardJoinMessage{}, 0, err
	}
	sender, sn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return ForwardJoinMessage{}, 0, err
	}
	n += sn
	newNode, nn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return ForwardJoinMessage{}, 0, err
	}
	n += nn
	ttl, tn, err := getUint8(buf[n:])
	if err != nil {
		return ForwardJoinMessage{}, 0, err
	}
	n += tn
	return ForwardJoinMessage{Destination: dest, Sender: sender, NewNode: newNode, TTL: ttl}, n, nil
}

type NeighborMessage struct {
	Destination  nodeid.LocalNodeId
	Sender       nodeid.NodeId
	HighPriority bool
}

func AppendNeighbor(buf []byte, m NeighborMessage) []byte {
	buf = AppendLocalNodeId(buf, m.Destination)
	buf = AppendNodeId(buf, m.Sender)
	buf = append(buf, boolByte(m.HighPriority))
	return buf
}

func DecodeNeighbor(buf []byte) (NeighborMessage, int, error) {
	dest, n, err := DecodeLocalNodeId(buf)
	if err != nil {
		return NeighborMessage{}, 0, err
	}
	sender, sn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return NeighborMessage{}, 0, err
	}
	n += sn
	hp, hn, err := getUint8(buf[n:])
	if err != nil {
		return NeighborMessage{}, 0, err
	}
	n += hn
	return NeighborMessage{Destination: dest, Sender: sender, HighPriority: hp != 0}, n, nil
}

// ShuffleMessage's Nodes list has no length prefix on the wire: it
// consumes every remaining byte of the frame. That is safe here because
// one UDP cast is exactly one frame, so "end of input" is the datagram
// boundary.
type ShuffleMessage struct {
	Destination nodeid.LocalNodeId
	Sender      nodeid.NodeId
	Origin      nodeid.NodeId
	TTL         uint8
	Nodes       []nodeid.NodeId
}

func AppendShuffle(buf []byte, m ShuffleMessage) []byte {
	buf = AppendLocalNodeId(buf, m.Destination)
	buf = AppendNodeId(buf, m.Sender)
	buf = AppendNodeId(buf, m.Origin)
	buf = append(buf, m.TTL)
	for _, node := range m.Nodes {
		buf = AppendNodeId(buf, node)
	}
	return buf
}

func DecodeShuffle(buf []byte) (ShuffleMessage, int, error) {
	dest, n, err := DecodeLocalNodeId(buf)
	if err != nil {
		return ShuffleMessage{}, 0, err
	}
	sender, sn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return ShuffleMessage{}, 0, err
	}
	n += sn
	origin, on, err := DecodeNodeId(buf[n:])
	if err != nil {
		return ShuffleMessage{}, 0, err
	}
	n += on
	ttl, tn, err := getUint8(buf[n:])
	if err != nil {
		return ShuffleMessage{}, 0, err
	}
	n += tn
	nodes, nn, err := decodeNodeIdsToEnd(buf[n:])
	if err != nil {
		return ShuffleMessage{}, 0, err
	}
	n += nn
	return ShuffleMessage{Destination: dest, Sender: sender, Origin: origin, TTL: ttl, Nodes: nodes}, n, nil
}

type ShuffleReplyMessage struct {
	Destination nodeid.LocalNodeId
	Sender      nodeid.NodeId
	Nodes       []nodeid.NodeId
}

func AppendShuffleReply(buf []byte, m ShuffleReplyMessage) []byte {
	buf = AppendLocalNodeId(buf, m.Destination)
	buf = AppendNodeId(buf, m.Sender)
	for _, node := range m.Nodes {
		buf = AppendNodeId(buf, node)
	}
	return buf
}

func DecodeShuffleReply(buf []byte) (ShuffleReplyMessage, int, error) {
	dest, n, err := DecodeLocalNodeId(buf)
	if err != nil {
		return ShuffleReplyMessage{}, 0, err
	}
	sender, sn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return ShuffleReplyMessage{}, 0, err
	}
	n += sn
	nodes, nn, err := decodeNodeIdsToEnd(buf[n:])
	if err != nil {
		return ShuffleReplyMessage{}, 0, err
	}
	n += nn
	return ShuffleReplyMessage{Destination: dest, Sender: sender, Nodes: nodes}, n, nil
}

type DisconnectMessage struct {
	Destination nodeid.LocalNodeId
	Sender      nodeid.NodeId
	Alive       bool
}

func AppendDisconnect(buf []byte, m DisconnectMessage) []byte {
	buf = AppendLocalNodeId(buf, m.Destination)
	buf = AppendNodeId(buf, m.Sender)
	buf = append(buf, boolByte(m.Alive))
	return buf
}

func DecodeDisconnect(buf []byte) (DisconnectMessage, int, error) {
	dest, n, err := DecodeLocalNodeId(buf)
	if err != nil {
		return DisconnectMessage{}, 0, err
	}
	sender, sn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return DisconnectMessage{}, 0, err
	}
	n += sn
	alive, an, err := getUint8(buf[n:])
	if err != nil {
		return DisconnectMessage{}, 0, err
	}
	n += an
	return DisconnectMessage{Destination: dest, Sender: sender, Alive: alive != 0}, n, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// decodeNodeIdsToEnd decodes NodeId entries until buf is fully
// consumed. An empty trailing buffer is not an error: a zero-length
// node list decodes to nil.
func decodeNodeIdsToEnd(buf []byte) ([]nodeid.NodeId, int, error) {
	var nodes []nodeid.NodeId
	n := 0
	for n < len(buf) {
		node, nn, err := DecodeNodeId(buf[n:])
		if err != nil {
			return nil, 0, err
		}
		nodes = append(nodes, node)
		n += nn
	}
	return nodes, n, nil
}
