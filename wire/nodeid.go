package wire

import (
	"net"

	"github.com/aistore-labs/plumcast/nodeid"
)

// AppendLocalNodeId appends id's wire encoding, an 8-byte big-endian
// integer.
func AppendLocalNodeId(buf []byte, id nodeid.LocalNodeId) []byte {
	return putUint64(buf, id.Value())
}

func DecodeLocalNodeId(buf []byte) (nodeid.LocalNodeId, int, error) {
	v, n, err := getUint64(buf)
	if err != nil {
		return 0, 0, err
	}
	return nodeid.LocalNodeId(v), n, nil
}

// AppendNodeId appends id's wire encoding: the node's socket address
// followed by its LocalNodeId.
func AppendNodeId(buf []byte, id nodeid.NodeId) []byte {
	addr, _ := id.Address().(*net.UDPAddr)
	buf = AppendSocketAddr(buf, addr)
	buf = AppendLocalNodeId(buf, id.LocalID())
	return buf
}

func DecodeNodeId(buf []byte) (nodeid.NodeId, int, error) {
	addr, n, err := DecodeSocketAddr(buf)
	if err != nil {
		return nodeid.NodeId{}, 0, err
	}
	local, ln, err := DecodeLocalNodeId(buf[n:])
	if err != nil {
		return nodeid.NodeId{}, 0, err
	}
	return nodeid.NewNodeId(addr, local), n + ln, nil
}

// AppendMessageId appends id's wire encoding: the originating NodeId
// followed by an 8-byte big-endian sequence number.
func AppendMessageId(buf []byte, id nodeid.MessageId) []byte {
	buf = AppendNodeId(buf, id.Node())
	buf = putUint64(buf, id.Seqno())
	return buf
}

func DecodeMessageId(buf []byte) (nodeid.MessageId, int, error) {
	node, n, err := DecodeNodeId(buf)
	if err != nil {
		return nodeid.MessageId{}, 0, err
	}
	seqno, sn, err := getUint64(buf[n:])
	if err != nil {
		return nodeid.MessageId{}, 0, err
	}
	return nodeid.NewMessageId(node, seqno), n + sn, nil
}
