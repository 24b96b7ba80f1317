// Package nodeid defines plumcast's three identifier types and the
// strategies used to mint LocalNodeIds for newly constructed Nodes: a
// LocalNodeId distinguishes Nodes within one process, a NodeId pairs a
// LocalNodeId with the node's UDP address to name a node cluster-wide,
// and a MessageId pairs a NodeId with a per-node sequence number to
// name a broadcast message uniquely.
package nodeid

import (
	"fmt"
	"net"
)

// LocalNodeId distinguishes Nodes sharing one process. It carries no
// meaning outside that process; two different processes may (and often
// will) assign the same LocalNodeId value to unrelated nodes.
type LocalNodeId uint64

func (id LocalNodeId) Value() uint64  { return uint64(id) }
func (id LocalNodeId) String() string { return fmt.Sprintf("%d", uint64(id)) }

// NodeId names a node cluster-wide: the UDP address its transport server
// listens on, plus the LocalNodeId distinguishing it from any other node
// sharing that address (one process may run several Nodes on one port).
//
// The address is stored as its canonical string form rather than a raw
// net.Addr, so NodeId stays a plain comparable value (hyparview.Node
// and plumtree.Node key their peer/message tables directly on P/ID via
// ==). Two NodeId values built from distinct *net.UDPAddr instances
// naming the same address compare equal by value, not by pointer.
type NodeId struct {
	addr    string
	localID LocalNodeId
}

func NewNodeId(address net.Addr, localID LocalNodeId) NodeId {
	return NodeId{addr: address.String(), localID: localID}
}

// Address resolves the stored address back into a net.Addr. It returns
// nil if the value was never built from a resolvable UDP address (e.g.
// a non-UDP net.Addr passed to NewNodeId), so a `.(*net.UDPAddr)` type
// assertion on the result behaves exactly as it would against the
// original net.Addr.
func (id NodeId) Address() net.Addr {
	a, err := net.ResolveUDPAddr("udp", id.addr)
	if err != nil {
		return nil
	}
	return a
}

func (id NodeId) LocalID() LocalNodeId { return id.localID }

// String renders the diagnostic form "{local_id:08x}@{address}".
func (id NodeId) String() string {
	return fmt.Sprintf("%08x@%s", uint64(id.localID), id.addr)
}

func (id NodeId) Equal(other NodeId) bool {
	return id == other
}

// MessageId names one broadcast message: the NodeId of the node that
// originated it, plus the sequence number that node assigned it. Two
// messages from the same node with the same seqno are the same message;
// the pair is not reused by a node that remains alive unless its
// sequence counter wraps past 2^64, which Sequencer (below) warns about
// but does not prevent.
type MessageId struct {
	node  NodeId
	seqno uint64
}

func NewMessageId(node NodeId, seqno uint64) MessageId {
	return MessageId{node: node, seqno: seqno}
}

func (id MessageId) Node() NodeId  { return id.node }
func (id MessageId) Seqno() uint64 { return id.seqno }

func (id MessageId) String() string {
	return fmt.Sprintf("%s#%d", id.node, id.seqno)
}

func (id MessageId) Equal(other MessageId) bool {
	return id.seqno == other.seqno && id.node.Equal(other.node)
}
