// Package hyparview implements the HyParView partial-view membership
// protocol (Leitao, Pereira, Rodrigues): a small active view of live
// peers backed by a larger passive view of repair candidates.
//
// The engine is pure state plus an action queue. Inputs are protocol
// messages and join/shuffle/sync/fill/disconnect triggers; outputs are
// drained through PollAction (Send/Notify/Disconnect). It never touches
// the network itself.
package hyparview

import (
	"math/rand"
)

// Options configures view sizes and random-walk lengths. Defaults match
// the values the HyParView paper recommends for a fleet in the low
// thousands: ActiveViewSize ~ log(n)+1, PassiveViewSize ~ 6*log(n).
type Options struct {
	ActiveViewSize  int
	PassiveViewSize int
	ARWL            uint8 // active random walk length, forwarded Join ttl
	PRWL            uint8 // passive random walk length, passive-view insertion threshold
	ShuffleTTL      uint8
	ShuffleActive   int // active-view peers sampled into a shuffle
	ShufflePassive  int // passive-view peers sampled into a shuffle
	Rand            *rand.Rand
}

func DefaultOptions() Options {
	return Options{
		ActiveViewSize:  5,
		PassiveViewSize: 30,
		ARWL:            6,
		PRWL:            3,
		ShuffleTTL:      3,
		ShuffleActive:   3,
		ShufflePassive:  4,
	}
}

// Node is the HyParView membership engine for one local protocol
// participant. It is pure state plus an action queue: all effects
// (outbound messages, up-calls) are observed by draining PollAction,
// never performed as a side effect of a state-machine input.
type Node[P comparable] struct {
	self    P
	opts    Options
	rnd     *rand.Rand
	active  []P
	passive []P
	actions []Action[P]
}

func New[P comparable](self P, opts Options) *Node[P] {
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	return &Node[P]{self: self, opts: opts, rnd: r}
}

func (n *Node[P]) ActiveView() []P {
	return append([]P(nil), n.active...)
}

func (n *Node[P]) PassiveView() []P {
	return append([]P(nil), n.passive...)
}

// PollAction returns the next pending action, if any. Callers should
// drain to quiescence before blocking on other input.
func (n *Node[P]) PollAction() (Action[P], bool) {
	if len(n.actions) == 0 {
		return Action[P]{}, false
	}
	a := n.actions[0]
	n.actions = n.actions[1:]
	return a, true
}

func (n *Node[P]) emit(a Action[P]) {
	n.actions = append(n.actions, a)
}

func (n *Node[P]) send(dest P, msg Message[P]) {
	n.emit(Action[P]{Kind: ActionSend, Destination: dest, Message: msg})
}

func (n *Node[P]) notify(kind EventKind, peer P) {
	n.emit(Action[P]{Kind: ActionNotify, Event: Event[P]{Kind: kind, Node: peer}})
}

func (n *Node[P]) disconnected(peer P) {
	n.emit(Action[P]{Kind: ActionDisconnect, Destination: peer})
}

func (n *Node[P]) indexOf(list []P, peer P) int {
	for i, p := range list {
		if p == peer {
			return i
		}
	}
	return -1
}

func (n *Node[P]) removeFrom(list *[]P, peer P) bool {
	i := n.indexOf(*list, peer)
	if i < 0 {
		return false
	}
	*list = append((*list)[:i], (*list)[i+1:]...)
	return true
}

func (n *Node[P]) inActive(peer P) bool  { return n.indexOf(n.active, peer) >= 0 }
func (n *Node[P]) inPassive(peer P) bool { return n.indexOf(n.passive, peer) >= 0 }

// addActiveView admits peer to the active view, evicting a random
// existing member (demoted to the passive view, with a protocol-level
// Disconnect emitted to it) if the view is already full. No-op if peer
// is already active or equal to self.
func (n *Node[P]) addActiveView(peer P) {
	if peer == n.self || n.inActive(peer) {
		return
	}
	n.removeFromPassive(peer)
	if len(n.active) >= n.opts.ActiveViewSize && len(n.active) > 0 {
		victim := n.active[n.rnd.Intn(len(n.active))]
		n.dropActivePeer(victim, true)
	}
	n.active = append(n.active, peer)
	n.notify(NeighborUp, peer)
}

func (n *Node[P]) removeFromPassive(peer P) {
	n.removeFrom(&n.passive, peer)
}

// dropActivePeer removes peer from the active view, emits NeighborDown,
// demotes it to the passive view, and (when send is true) casts it a
// farewell Disconnect.
func (n *Node[P]) dropActivePeer(peer P, send bool) {
	if !n.removeFrom(&n.active, peer) {
		return
	}
	n.notify(NeighborDown, peer)
	n.disconnected(peer)
	n.addPassiveView(peer)
	if send {
		n.send(peer, Message[P]{Kind: MsgDisconnect, Sender: n.self, Alive: true})
	}
}

// addPassiveView admits peer to the passive view, evicting a random
// member if full. No-op if peer is active, already passive, or self.
func (n *Node[P]) addPassiveView(peer P) {
	if peer == n.self || n.inActive(peer) || n.inPassive(peer) {
		return
	}
	if len(n.passive) >= n.opts.PassiveViewSize && len(n.passive) > 0 {
		i := n.rnd.Intn(len(n.passive))
		n.passive = append(n.passive[:i], n.passive[i+1:]...)
	}
	n.passive = append(n.passive, peer)
}

// Join seeds the membership engine with an initial contact node,
// admitting it directly to the active view and asking it to forward
// this node's identity onward so the rest of the overlay learns of it.
func (n *Node[P]) Join(contact P) {
	if contact == n.self {
		return
	}
	n.addActiveView(contact)
	n.send(contact, Message[P]{Kind: MsgJoin, Sender: n.self})
}

// Disconnect tears peer out of both views and, if alive, demotes it to
// the passive view instead of discarding it outright.
func (n *Node[P]) Disconnect(peer P, alive bool) {
	if n.removeFrom(&n.active, peer) {
		n.notify(NeighborDown, peer)
		n.disconnected(peer)
		if alive {
			n.addPassiveView(peer)
		}
		return
	}
	n.removeFrom(&n.passive, peer)
}

// HandleProtocolMessage dispatches one inbound HyParView frame.
func (n *Node[P]) HandleProtocolMessage(msg Message[P]) {
	switch msg.Kind {
	case MsgJoin:
		n.handleJoin(msg)
	case MsgForwardJoin:
		n.handleForwardJoin(msg)
	case MsgNeighbor:
		n.handleNeighbor(msg)
	case MsgShuffle:
		n.handleShuffle(msg)
	case MsgShuffleReply:
		n.handleShuffleReply(msg)
	case MsgDisconnect:
		n.Disconnect(msg.Sender, msg.Alive)
	}
}

func (n *Node[P]) handleJoin(msg Message[P]) {
	n.addActiveView(msg.Sender)
	for _, peer := range n.active {
		if peer == msg.Sender {
			continue
		}
		n.send(peer, Message[P]{
			Kind:    MsgForwardJoin,
			Sender:  n.self,
			NewNode: msg.Sender,
			TTL:     n.opts.ARWL,
		})
	}
}

func (n *Node[P]) handleForwardJoin(msg Message[P]) {
	if msg.TTL == 0 || len(n.active) == 0 {
		n.acceptForwardJoin(msg.NewNode)
		return
	}
	if msg.TTL == n.opts.PRWL {
		n.addPassiveView(msg.NewNode)
	}
	candidates := make([]P, 0, len(n.active))
	for _, peer := range n.active {
		if peer != msg.Sender {
			candidates = append(candidates, peer)
		}
	}
	if len(candidates) == 0 {
		n.acceptForwardJoin(msg.NewNode)
		return
	}
	next := candidates[n.rnd.Intn(len(candidates))]
	n.send(next, Message[P]{
		Kind:    MsgForwardJoin,
		Sender:  n.self,
		NewNode: msg.NewNode,
		TTL:     msg.TTL - 1,
	})
}

// acceptForwardJoin ends a forwarded join's random walk at this node:
// the new node is admitted to the active view and told so via a
// high-priority Neighbor request, without which its own view would
// never learn the link exists.
func (n *Node[P]) acceptForwardJoin(peer P) {
	if peer == n.self || n.inActive(peer) {
		return
	}
	n.addActiveView(peer)
	n.send(peer, Message[P]{Kind: MsgNeighbor, Sender: n.self, HighPriority: true})
}

func (n *Node[P]) handleNeighbor(msg Message[P]) {
	if msg.HighPriority || len(n.active) < n.opts.ActiveViewSize {
		n.addActiveView(msg.Sender)
	}
}

func (n *Node[P]) handleShuffle(msg Message[P]) {
	candidates := make([]P, 0, len(n.active))
	for _, peer := range n.active {
		if peer != msg.Sender {
			candidates = append(candidates, peer)
		}
	}
	if msg.TTL > 0 && len(candidates) > 0 {
		next := candidates[n.rnd.Intn(len(candidates))]
		n.send(next, Message[P]{
			Kind:   MsgShuffle,
			Sender: n.self,
			Origin: msg.Origin,
			TTL:    msg.TTL - 1,
			Nodes:  msg.Nodes,
		})
		return
	}
	reply := n.sampleNodes(n.opts.ShufflePassive + n.opts.ShuffleActive)
	n.send(msg.Origin, Message[P]{Kind: MsgShuffleReply, Sender: n.self, Nodes: reply})
	for _, peer := range msg.Nodes {
		n.addPassiveView(peer)
	}
}

func (n *Node[P]) handleShuffleReply(msg Message[P]) {
	for _, peer := range msg.Nodes {
		n.addPassiveView(peer)
	}
}

// ShufflePassiveView exchanges a random sample of this node's view with
// a random active peer, keeping passive-view entries fresh across the
// fleet. Called on the embedder's shuffle cadence.
func (n *Node[P]) ShufflePassiveView() {
	if len(n.active) == 0 {
		return
	}
	target := n.active[n.rnd.Intn(len(n.active))]
	sample := n.sampleNodes(n.opts.ShuffleActive + n.opts.ShufflePassive)
	n.send(target, Message[P]{
		Kind:   MsgShuffle,
		Sender: n.self,
		Origin: n.self,
		TTL:    n.opts.ShuffleTTL,
		Nodes:  sample,
	})
}

// FillActiveView tops the active view up toward its target size by
// promoting passive-view candidates via Neighbor requests.
func (n *Node[P]) FillActiveView() {
	for len(n.active) < n.opts.ActiveViewSize && len(n.passive) > 0 {
		i := n.rnd.Intn(len(n.passive))
		candidate := n.passive[i]
		n.passive = append(n.passive[:i], n.passive[i+1:]...)
		highPriority := len(n.active) == 0
		n.addActiveView(candidate)
		n.send(candidate, Message[P]{Kind: MsgNeighbor, Sender: n.self, HighPriority: highPriority})
	}
}

// SyncActiveView is the periodic consistency sweep. A cast-only
// transport gives no synchronous liveness signal to compare against, so
// the sweep reduces to another attempt to top the active view up to
// target, on its own cadence.
func (n *Node[P]) SyncActiveView() {
	n.FillActiveView()
}

// sampleNodes draws up to k distinct peers from the union of this
// node's active and passive views (excluding self), for use in Shuffle
// payloads.
func (n *Node[P]) sampleNodes(k int) []P {
	pool := make([]P, 0, len(n.active)+len(n.passive))
	pool = append(pool, n.active...)
	pool = append(pool, n.passive...)
	n.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if k > len(pool) {
		k = len(pool)
	}
	return append([]P(nil), pool[:k]...)
}
