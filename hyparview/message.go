package hyparview

// MessageKind tags the variant a Message carries, one per HyParView
// frame type, matching transport.ProcedureId's membership block.
type MessageKind int

const (
	MsgJoin MessageKind = iota
	MsgForwardJoin
	MsgNeighbor
	MsgShuffle
	MsgShuffleReply
	MsgDisconnect
)

// Message is a peer-type-parameterized protocol frame. The root
// plumcast package translates between this shape and the concrete
// wire.JoinMessage/wire.ForwardJoinMessage/... types, keeping this
// engine decoupled from the wire codec.
type Message[P comparable] struct {
	Kind         MessageKind
	Sender       P
	NewNode      P // ForwardJoin
	TTL          uint8
	HighPriority bool // Neighbor
	Origin       P    // Shuffle
	Nodes        []P  // Shuffle, ShuffleReply
	Alive        bool // Disconnect
}

// EventKind distinguishes the two up-calls the embedding node turns
// into tree-engine triggers.
type EventKind int

const (
	NeighborUp EventKind = iota
	NeighborDown
)

type Event[P comparable] struct {
	Kind EventKind
	Node P
}

// ActionKind tags the variant an Action carries.
type ActionKind int

const (
	ActionSend ActionKind = iota
	ActionNotify
	ActionDisconnect
)

// Action is one pending effect a Node engine wants performed. Send asks
// the caller to cast Message to Destination; Notify reports a view
// membership change for the caller to translate into a tree-engine
// trigger; Disconnect reports that Destination just left the active
// view. Disconnect is emitted alongside (never instead of) the
// NeighborDown Notify; the latter drives the tree engine, the former
// is informational.
type Action[P comparable] struct {
	Kind        ActionKind
	Destination P
	Message     Message[P]
	Event       Event[P]
}
