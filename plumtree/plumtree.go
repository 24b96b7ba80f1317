package plumtree

// Options configures the eager/lazy-push grace period before a missing
// message is actively grafted.
type Options struct {
	// IhaveGraceTicks is how many Tick() calls this node waits after the
	// first IHave for an unknown message before it sends a Graft asking
	// for the payload outright.
	IhaveGraceTicks uint64
}

func DefaultOptions() Options {
	return Options{IhaveGraceTicks: 5}
}

type cachedMessage[ID comparable, Payload any] struct {
	payload Payload
	round   uint16
}

type missingEntry[P comparable] struct {
	round      uint16
	candidates []P
	deadline   uint64
}

// Node is the Plumtree tree engine for one local protocol participant.
// Like hyparview.Node it is pure state plus an action queue.
type Node[P comparable, ID comparable, Payload any] struct {
	self P
	opts Options
	tick uint64

	eager map[P]struct{}
	lazy  map[P]struct{}

	cache   map[ID]cachedMessage[ID, Payload]
	missing map[ID]*missingEntry[P]

	actions []Action[P, ID, Payload]
}

func New[P comparable, ID comparable, Payload any](self P, opts Options) *Node[P, ID, Payload] {
	return &Node[P, ID, Payload]{
		self:    self,
		opts:    opts,
		eager:   make(map[P]struct{}),
		lazy:    make(map[P]struct{}),
		cache:   make(map[ID]cachedMessage[ID, Payload]),
		missing: make(map[ID]*missingEntry[P]),
	}
}

func (n *Node[P, ID, Payload]) PollAction() (Action[P, ID, Payload], bool) {
	if len(n.actions) == 0 {
		return Action[P, ID, Payload]{}, false
	}
	a := n.actions[0]
	n.actions = n.actions[1:]
	return a, true
}

func (n *Node[P, ID, Payload]) emit(a Action[P, ID, Payload]) {
	n.actions = append(n.actions, a)
}

func (n *Node[P, ID, Payload]) send(dest P, msg ProtocolMessage[P, ID, Payload]) {
	n.emit(Action[P, ID, Payload]{Kind: ActionSend, Destination: dest, Message: msg})
}

// EagerPeers and LazyPeers expose the tree-peer set, mainly so callers
// can check the invariant that it stays a subset of the membership
// engine's active view.
func (n *Node[P, ID, Payload]) EagerPeers() []P { return keys(n.eager) }
func (n *Node[P, ID, Payload]) LazyPeers() []P  { return keys(n.lazy) }

func keys[P comparable](m map[P]struct{}) []P {
	out := make([]P, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	return out
}

// HandleNeighborUp admits a newly active peer to the eager-push set.
// Every active-view peer starts as a tree peer until a Prune demotes it.
func (n *Node[P, ID, Payload]) HandleNeighborUp(peer P) {
	delete(n.lazy, peer)
	n.eager[peer] = struct{}{}
}

// HandleNeighborDown evicts a peer from both push sets and drops it as
// a Graft candidate for any message currently being chased.
func (n *Node[P, ID, Payload]) HandleNeighborDown(peer P) {
	delete(n.eager, peer)
	delete(n.lazy, peer)
	for _, entry := range n.missing {
		entry.candidates = removePeer(entry.candidates, peer)
	}
}

func removePeer[P comparable](list []P, peer P) []P {
	for i, p := range list {
		if p == peer {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// BroadcastMessage originates a new application message: it is cached
// at round 0, delivered locally (the origin is a receiver too),
// eager-pushed in full to every tree peer, and announced by id to every
// lazy peer.
func (n *Node[P, ID, Payload]) BroadcastMessage(msg Message[ID, Payload]) {
	n.cache[msg.ID] = cachedMessage[ID, Payload]{payload: msg.Payload, round: 0}
	delete(n.missing, msg.ID)
	n.emit(Action[P, ID, Payload]{Kind: ActionDeliver, Deliver: msg})
	n.pushTo(msg.ID, msg.Payload, 0, zero[P]())
}

// pushTo gossips a message in full to every eager peer and its id-only
// summary to every lazy peer, excluding exclude (typically the sender
// a Gossip/Graft arrived from).
func (n *Node[P, ID, Payload]) pushTo(id ID, payload Payload, round uint16, exclude P) {
	for peer := range n.eager {
		if peer == exclude {
			continue
		}
		n.send(peer, ProtocolMessage[P, ID, Payload]{Kind: MsgGossip, Sender: n.self, Round: round, ID: id, Payload: payload})
	}
	for peer := range n.lazy {
		if peer == exclude {
			continue
		}
		n.send(peer, ProtocolMessage[P, ID, Payload]{Kind: MsgIhave, Sender: n.self, Round: round, ID: id})
	}
}

func zero[P any]() (z P) { return z }

// ForgetMessage drops the retained payload for id. ok is false if id
// was never cached (or already forgotten); the caller counts that as a
// forget-unknown-message error.
func (n *Node[P, ID, Payload]) ForgetMessage(id ID) (ok bool) {
	if _, found := n.cache[id]; !found {
		return false
	}
	delete(n.cache, id)
	return true
}

// HandleProtocolMessage dispatches one inbound frame. Sender-membership
// screening is the caller's business: the Node engine checks the
// sender against the membership engine's active view before calling in
// and counts a negative lookup there as an unknown-node error.
func (n *Node[P, ID, Payload]) HandleProtocolMessage(msg ProtocolMessage[P, ID, Payload]) {
	switch msg.Kind {
	case MsgGossip:
		n.handleGossip(msg)
	case MsgIhave:
		n.handleIhave(msg)
	case MsgGraft:
		n.handleGraft(msg)
	case MsgPrune:
		n.handlePrune(msg)
	}
}

func (n *Node[P, ID, Payload]) handleGossip(msg ProtocolMessage[P, ID, Payload]) {
	if _, have := n.cache[msg.ID]; have {
		// Redundant delivery: this link is not needed for the tree,
		// demote the sender to lazy push.
		delete(n.eager, msg.Sender)
		n.lazy[msg.Sender] = struct{}{}
		n.send(msg.Sender, ProtocolMessage[P, ID, Payload]{Kind: MsgPrune, Sender: n.self})
		return
	}
	n.cache[msg.ID] = cachedMessage[ID, Payload]{payload: msg.Payload, round: msg.Round}
	delete(n.missing, msg.ID)
	n.eager[msg.Sender] = struct{}{}
	delete(n.lazy, msg.Sender)
	n.emit(Action[P, ID, Payload]{Kind: ActionDeliver, Deliver: Message[ID, Payload]{ID: msg.ID, Payload: msg.Payload}})
	n.pushTo(msg.ID, msg.Payload, msg.Round+1, msg.Sender)
}

func (n *Node[P, ID, Payload]) handleIhave(msg ProtocolMessage[P, ID, Payload]) {
	if _, have := n.cache[msg.ID]; have {
		return
	}
	entry, tracking := n.missing[msg.ID]
	if !tracking {
		entry = &missingEntry[P]{round: msg.Round, deadline: n.tick + n.opts.IhaveGraceTicks}
		n.missing[msg.ID] = entry
	}
	entry.candidates = append(entry.candidates, msg.Sender)
}

func (n *Node[P, ID, Payload]) handleGraft(msg ProtocolMessage[P, ID, Payload]) {
	delete(n.lazy, msg.Sender)
	n.eager[msg.Sender] = struct{}{}
	if !msg.HasID {
		return
	}
	cached, have := n.cache[msg.ID]
	if !have {
		return
	}
	n.send(msg.Sender, ProtocolMessage[P, ID, Payload]{Kind: MsgGossip, Sender: n.self, Round: cached.round, ID: msg.ID, Payload: cached.payload})
}

func (n *Node[P, ID, Payload]) handlePrune(msg ProtocolMessage[P, ID, Payload]) {
	delete(n.eager, msg.Sender)
	n.lazy[msg.Sender] = struct{}{}
}

// Tick advances the engine's logical clock and grafts any message that
// has been missing for longer than the configured grace period,
// rotating through the peers that announced it.
func (n *Node[P, ID, Payload]) Tick() {
	n.tick++
	for id, entry := range n.missing {
		if n.tick < entry.deadline || len(entry.candidates) == 0 {
			continue
		}
		candidate := entry.candidates[0]
		entry.candidates = entry.candidates[1:]
		entry.deadline = n.tick + n.opts.IhaveGraceTicks
		n.eager[candidate] = struct{}{}
		delete(n.lazy, candidate)
		n.send(candidate, ProtocolMessage[P, ID, Payload]{Kind: MsgGraft, Sender: n.self, Round: entry.round, ID: id, HasID: true})
	}
}
