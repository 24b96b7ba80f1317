// Package plumtree implements the Plumtree epidemic broadcast tree
// protocol (Leitao, Pereira, Rodrigues) layered over an active view
// supplied by a membership engine.
//
// Like hyparview, the engine is pure state plus an action queue: it
// never touches the network itself. The embedding node drains
// PollAction and performs the sends and deliveries.
package plumtree

// Message is the broadcast application message itself: an id plus an
// opaque payload. Broadcast/Deliver actions carry this shape.
type Message[ID comparable, Payload any] struct {
	ID      ID
	Payload Payload
}

// MessageKind tags the variant a ProtocolMessage carries.
type MessageKind int

const (
	MsgGossip MessageKind = iota
	MsgIhave
	MsgGraft
	MsgPrune
)

// ProtocolMessage is a peer/id/payload-type-parameterized tree frame.
// The root plumcast package translates between this shape and the
// concrete wire.GossipMessage/wire.IhaveMessage/... types.
type ProtocolMessage[P comparable, ID comparable, Payload any] struct {
	Kind    MessageKind
	Sender  P
	Round   uint16
	ID      ID        // Gossip, IHave, Graft (when HasID)
	HasID   bool      // Graft only: whether ID is meaningful
	Payload Payload    // Gossip only
}

// ActionKind tags the variant an Action carries.
type ActionKind int

const (
	ActionSend ActionKind = iota
	ActionDeliver
)

// Action is one pending effect this engine wants performed: Send asks
// the caller to cast Message to Destination; Deliver hands a complete
// application Message upward to the embedder's stream.
type Action[P comparable, ID comparable, Payload any] struct {
	Kind        ActionKind
	Destination P
	Message     ProtocolMessage[P, ID, Payload]
	Deliver     Message[ID, Payload]
}
