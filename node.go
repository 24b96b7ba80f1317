package plumcast

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/aistore-labs/plumcast/cmn/cos"
	"github.com/aistore-labs/plumcast/cmn/nlog"
	"github.com/aistore-labs/plumcast/config"
	"github.com/aistore-labs/plumcast/hyparview"
	"github.com/aistore-labs/plumcast/nodeid"
	"github.com/aistore-labs/plumcast/plumtree"
	"github.com/aistore-labs/plumcast/registry"
	"github.com/aistore-labs/plumcast/stats"
	"github.com/aistore-labs/plumcast/transport"
	"github.com/aistore-labs/plumcast/wire"
)

// inboundFrame is one still-encoded datagram handed from the Service's
// dispatch to this Node's mailbox. The Service only looks at the
// destination/sender prefix to route; the full protocol-level decode
// happens here, inside the Node's own run loop, so the Service stays
// free of any knowledge of frame internals.
type inboundFrame struct {
	procID  transport.ProcedureId
	from    *net.UDPAddr
	payload []byte
}

type cmdKind int

const (
	cmdJoin cmdKind = iota
	cmdBroadcast
	cmdForget
)

type nodeCommand[M any] struct {
	kind    cmdKind
	contact nodeid.NodeId
	payload M
	id      nodeid.MessageId
}

// NodeBuilder configures a Node before Finish binds it to a Service and
// registers it: the tick interval, the three maintenance cadences, and
// both engines' option bags.
type NodeBuilder[M any] struct {
	svc   *registry.Service
	codec Codec[M]

	tickInterval time.Duration
	shuffleTicks uint64
	syncTicks    uint64
	fillTicks    uint64
	hvOpts       hyparview.Options
	ptOpts       plumtree.Options
	rnd          *rand.Rand
	mailboxLen   int
	commandLen   int
	messagesLen  int
}

// NewNodeBuilder starts from the library's pinned defaults: a 100ms
// tick, the 59/31/20-tick maintenance moduli, and each engine's own
// DefaultOptions.
func NewNodeBuilder[M any](svc *registry.Service, codec Codec[M]) *NodeBuilder[M] {
	return &NodeBuilder[M]{
		svc:          svc,
		codec:        codec,
		tickInterval: 100 * time.Millisecond,
		shuffleTicks: 59,
		syncTicks:    31,
		fillTicks:    20,
		hvOpts:       hyparview.DefaultOptions(),
		ptOpts:       plumtree.DefaultOptions(),
		mailboxLen:   256,
		commandLen:   32,
		messagesLen:  64,
	}
}

func (b *NodeBuilder[M]) TickInterval(d time.Duration) *NodeBuilder[M] {
	b.tickInterval = d
	return b
}

func (b *NodeBuilder[M]) ShuffleIntervalTicks(n uint64) *NodeBuilder[M] {
	b.shuffleTicks = n
	return b
}

func (b *NodeBuilder[M]) SyncIntervalTicks(n uint64) *NodeBuilder[M] {
	b.syncTicks = n
	return b
}

func (b *NodeBuilder[M]) FillIntervalTicks(n uint64) *NodeBuilder[M] {
	b.fillTicks = n
	return b
}

func (b *NodeBuilder[M]) HyParViewOptions(o hyparview.Options) *NodeBuilder[M] {
	b.hvOpts = o
	return b
}

func (b *NodeBuilder[M]) PlumtreeOptions(o plumtree.Options) *NodeBuilder[M] {
	b.ptOpts = o
	return b
}

func (b *NodeBuilder[M]) Rand(r *rand.Rand) *NodeBuilder[M] {
	b.rnd = r
	return b
}

// FromConfig overlays cfg's Node-level tunables onto the builder.
func (b *NodeBuilder[M]) FromConfig(cfg config.Config) *NodeBuilder[M] {
	if cfg.TickInterval.Duration > 0 {
		b.tickInterval = cfg.TickInterval.Duration
	}
	if cfg.HyParViewShuffleIntervalTicks > 0 {
		b.shuffleTicks = cfg.HyParViewShuffleIntervalTicks
	}
	if cfg.HyParViewSyncIntervalTicks > 0 {
		b.syncTicks = cfg.HyParViewSyncIntervalTicks
	}
	if cfg.HyParViewFillIntervalTicks > 0 {
		b.fillTicks = cfg.HyParViewFillIntervalTicks
	}
	b.hvOpts = cfg.HyParView.ToOptions()
	b.ptOpts = cfg.Plumtree.ToOptions()
	return b
}

// Finish mints a NodeId from the Service, builds the two engines bound
// to it, registers the Node as a NodeHandle, and returns it ready to
// Run.
func (b *NodeBuilder[M]) Finish(metrics *stats.NodeMetrics) *Node[M] {
	id := b.svc.GenerateNodeId()
	rnd := b.rnd
	if rnd == nil {
		rnd = rand.New(rand.NewSource(int64(id.LocalID().Value()) + 1))
	}
	hvOpts := b.hvOpts
	if hvOpts.Rand == nil {
		hvOpts.Rand = rnd
	}

	n := &Node[M]{
		id:       id,
		svc:      b.svc,
		codec:    b.codec,
		seq:      nodeid.NewSequencer(),
		hv:       hyparview.New(id, hvOpts),
		pt:       plumtree.New[nodeid.NodeId, nodeid.MessageId, M](id, b.ptOpts),
		metrics:  metrics,
		tickInterval: b.tickInterval,
		// ±10% jitter on each node's own moduli, computed once here so a
		// fleet started in lockstep does not shuffle in lockstep.
		shuffleEvery: jitterModulus(rnd, b.shuffleTicks),
		syncEvery:    jitterModulus(rnd, b.syncTicks),
		fillEvery:    jitterModulus(rnd, b.fillTicks),
		mailbox:      make(chan inboundFrame, b.mailboxLen),
		commands:     make(chan nodeCommand[M], b.commandLen),
		messages:     make(chan Message[M], b.messagesLen),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	n.seq.OnNearWrap(func() {
		nlog.Warningf("plumcast: node %s is within 2^32 of sequence-number wraparound", n.id)
	})
	b.svc.RegisterLocalNode(n)
	return n
}

// jitterModulus randomizes base by up to ±10%, never below 1. A zero
// base stays zero, which leaves that maintenance task disabled.
func jitterModulus(r *rand.Rand, base uint64) uint64 {
	if base == 0 {
		return 0
	}
	spread := int64(base) / 10
	if spread == 0 {
		return base
	}
	delta := r.Int63n(2*spread+1) - spread
	v := int64(base) + delta
	if v < 1 {
		v = 1
	}
	return uint64(v)
}

// Node integrates a membership engine and a tree engine with a mailbox
// of inbound frames, a sequence counter, and a clock-driven run loop,
// all confined to the single goroutine that calls Run. Neither engine
// is ever touched from two goroutines.
type Node[M any] struct {
	id      nodeid.NodeId
	svc     *registry.Service
	codec   Codec[M]
	seq     *nodeid.Sequencer
	hv      *hyparview.Node[nodeid.NodeId]
	pt      *plumtree.Node[nodeid.NodeId, nodeid.MessageId, M]
	metrics *stats.NodeMetrics

	tickInterval time.Duration
	shuffleEvery uint64
	syncEvery    uint64
	fillEvery    uint64
	ticks        uint64

	// isolated is set when the active view empties after having been
	// populated; it distinguishes recovering from isolation (counted)
	// from gaining a first-ever neighbor (not counted).
	isolated bool

	// deliveredNotForgotten counts messages handed upward via Deliver
	// that the application hasn't yet forgotten; on shutdown these are
	// folded into forgot_messages so forgot_messages catches up to
	// delivered_messages even for messages still in flight at the
	// moment of Stop.
	deliveredNotForgotten uint64

	mailbox  chan inboundFrame
	commands chan nodeCommand[M]
	messages chan Message[M]
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// ID returns this Node's cluster-wide identity.
func (n *Node[M]) ID() nodeid.NodeId { return n.id }

// Metrics exposes this Node's counters.
func (n *Node[M]) Metrics() *stats.NodeMetrics { return n.metrics }

// Messages yields a Message whenever the tree engine delivers one.
// The channel stays open for the lifetime of the Node.
func (n *Node[M]) Messages() <-chan Message[M] { return n.messages }

// LocalID implements registry.NodeHandle.
func (n *Node[M]) LocalID() nodeid.LocalNodeId { return n.id.LocalID() }

// Deliver implements registry.NodeHandle. It must never block the
// Service's dispatch goroutine, so a full mailbox drops the frame with
// a warning rather than blocking.
func (n *Node[M]) Deliver(procID transport.ProcedureId, from *net.UDPAddr, payload []byte) {
	select {
	case n.mailbox <- inboundFrame{procID: procID, from: from, payload: payload}:
	default:
		nlog.Warningf("plumcast: node %s mailbox full, dropping inbound %s from %s", n.id, procID, from)
	}
}

// Join seeds the membership engine with an initial contact node.
func (n *Node[M]) Join(contact nodeid.NodeId) {
	n.commands <- nodeCommand[M]{kind: cmdJoin, contact: contact}
}

// Broadcast submits payload for tree-wide dissemination.
func (n *Node[M]) Broadcast(payload M) {
	n.commands <- nodeCommand[M]{kind: cmdBroadcast, payload: payload}
}

// ForgetMessage instructs the tree engine to drop a retained payload.
func (n *Node[M]) ForgetMessage(id nodeid.MessageId) {
	n.commands <- nodeCommand[M]{kind: cmdForget, id: id}
}

// Stop requests the run loop to exit, sending farewell disconnects and
// deregistering. Stop blocks until the run loop has actually exited.
func (n *Node[M]) Stop() {
	select {
	case <-n.stopCh:
	default:
		close(n.stopCh)
	}
	<-n.doneCh
}

// Run drives the Node's run loop until ctx is canceled or Stop is
// called, translating between the two engines' action streams and the
// transport. It always deregisters and sends farewell disconnects
// before returning.
func (n *Node[M]) Run(ctx context.Context) error {
	defer close(n.doneCh)
	ticker := time.NewTicker(n.tickInterval)
	defer ticker.Stop()

	for {
		n.drainActions()

		select {
		case <-ctx.Done():
			n.leave()
			return ctx.Err()
		case <-n.stopCh:
			n.leave()
			return nil
		case <-ticker.C:
			n.onTick()
		case frame := <-n.mailbox:
			n.handleInboundFrame(frame)
		case cmd := <-n.commands:
			n.handleCommand(cmd)
		}
	}
}

func (n *Node[M]) handleCommand(cmd nodeCommand[M]) {
	switch cmd.kind {
	case cmdJoin:
		n.hv.Join(cmd.contact)
	case cmdBroadcast:
		id := nodeid.NewMessageId(n.id, n.seq.Next())
		n.pt.BroadcastMessage(plumtree.Message[nodeid.MessageId, M]{ID: id, Payload: cmd.payload})
		if n.metrics != nil {
			n.metrics.BroadcastedMessage()
		}
	case cmdForget:
		if n.pt.ForgetMessage(cmd.id) {
			if n.metrics != nil {
				n.metrics.ForgotMessage()
			}
			if n.deliveredNotForgotten > 0 {
				n.deliveredNotForgotten--
			}
		} else if n.metrics != nil {
			n.metrics.Error(stats.ErrForgetUnknownMessage)
		}
	}
}

// onTick advances the tree engine's logical clock and, on the jittered
// moduli computed at construction, runs HyParView's periodic
// maintenance.
func (n *Node[M]) onTick() {
	n.ticks++
	n.pt.Tick()
	if n.shuffleEvery > 0 && n.ticks%n.shuffleEvery == 0 {
		n.hv.ShufflePassiveView()
	}
	if n.fillEvery > 0 && (n.ticks%n.fillEvery == 0 || len(n.hv.ActiveView()) == 0) {
		n.hv.FillActiveView()
	}
	if n.syncEvery > 0 && n.ticks%n.syncEvery == 0 {
		n.hv.SyncActiveView()
	}
}

// handleInboundFrame decodes one wire frame and routes it to the
// engine its procedure id names. Membership frames are always
// accepted; tree frames from a sender outside the active view are
// counted and dropped, a benign race during view churn rather than an
// error worth propagating.
func (n *Node[M]) handleInboundFrame(f inboundFrame) {
	switch f.procID {
	case transport.JoinCast, transport.ForwardJoinCast, transport.NeighborCast,
		transport.ShuffleCast, transport.ShuffleReplyCast, transport.DisconnectCast:
		n.handleHyparviewFrame(f)
	case transport.GossipCast, transport.IhaveCast, transport.GraftCast,
		transport.GraftOptimizeCast, transport.PruneCast:
		n.handlePlumtreeFrame(f)
	default:
		nlog.Warningf("plumcast: node %s dropping frame with unknown procedure %s", n.id, f.procID)
	}
}

func (n *Node[M]) handleHyparviewFrame(f inboundFrame) {
	msg, err := decodeHyparviewMessage(f.procID, f.payload)
	if err != nil {
		nlog.Warningf("plumcast: node %s dropping malformed %s: %v", n.id, f.procID, err)
		return
	}
	n.hv.HandleProtocolMessage(msg)
}

func (n *Node[M]) handlePlumtreeFrame(f inboundFrame) {
	msg, err := n.decodePlumtreeMessage(f.procID, f.payload)
	if err != nil {
		nlog.Warningf("plumcast: node %s dropping malformed %s: %v", n.id, f.procID, err)
		return
	}
	if !n.inActiveView(msg.Sender) {
		if n.metrics != nil {
			n.metrics.Error(stats.ErrUnknownPlumtreeNode)
		}
		return
	}
	n.pt.HandleProtocolMessage(msg)
}

func (n *Node[M]) inActiveView(peer nodeid.NodeId) bool {
	for _, p := range n.hv.ActiveView() {
		if p == peer {
			return true
		}
	}
	return false
}

// drainActions processes both engines' pending actions to quiescence,
// except that a Deliver action is handed to the application stream
// immediately via a blocking send so application backpressure is
// honored. It alternates between the two engines so neither can starve
// the other's action queue.
func (n *Node[M]) drainActions() {
	for {
		didHV := n.drainOneHyparviewAction()
		didPT := n.drainOnePlumtreeAction()
		if !didHV && !didPT {
			return
		}
	}
}

func (n *Node[M]) drainOneHyparviewAction() bool {
	action, ok := n.hv.PollAction()
	if !ok {
		return false
	}
	switch action.Kind {
	case hyparview.ActionSend:
		n.sendHyparview(action.Destination, action.Message)
	case hyparview.ActionNotify:
		n.handleHyparviewNotify(action.Event)
	case hyparview.ActionDisconnect:
		nlog.Infof("plumcast: node %s disconnected: %s", n.id, action.Destination)
	}
	return true
}

func (n *Node[M]) handleHyparviewNotify(ev hyparview.Event[nodeid.NodeId]) {
	switch ev.Kind {
	case hyparview.NeighborUp:
		n.pt.HandleNeighborUp(ev.Node)
		if n.metrics != nil {
			n.metrics.ConnectedNeighbor()
		}
		if n.isolated {
			n.isolated = false
			if n.metrics != nil {
				n.metrics.Deisolated()
			}
		}
	case hyparview.NeighborDown:
		n.pt.HandleNeighborDown(ev.Node)
		if n.metrics != nil {
			n.metrics.DisconnectedNeighbor()
		}
		if len(n.hv.ActiveView()) == 0 && !n.isolated {
			n.isolated = true
			if n.metrics != nil {
				n.metrics.Isolated()
			}
		}
	}
}

func (n *Node[M]) drainOnePlumtreeAction() bool {
	action, ok := n.pt.PollAction()
	if !ok {
		return false
	}
	switch action.Kind {
	case plumtree.ActionSend:
		n.sendPlumtree(action.Destination, action.Message)
	case plumtree.ActionDeliver:
		n.deliver(action.Deliver)
	}
	return true
}

func (n *Node[M]) deliver(msg plumtree.Message[nodeid.MessageId, M]) {
	n.deliveredNotForgotten++
	if n.metrics != nil {
		n.metrics.DeliveredMessage()
	}
	n.messages <- newMessage(msg.ID, msg.Payload)
}

func (n *Node[M]) sendHyparview(dest nodeid.NodeId, msg hyparview.Message[nodeid.NodeId]) {
	procID, payload := encodeHyparviewMessage(dest.LocalID(), msg)
	if err := n.svc.SendMessage(dest, procID, payload); err != nil {
		nlog.Warningf("plumcast: node %s could not send %s to %s: %v", n.id, procID, dest, err)
		if n.metrics != nil {
			n.metrics.Error(stats.ErrCannotSendHyParViewMessage)
		}
		n.hv.Disconnect(dest, false)
		n.svc.RemovePeer(dest)
	}
}

func (n *Node[M]) sendPlumtree(dest nodeid.NodeId, msg plumtree.ProtocolMessage[nodeid.NodeId, nodeid.MessageId, M]) {
	procID, payload, err := n.encodePlumtreeMessage(dest.LocalID(), msg)
	if err != nil {
		nlog.Warningf("plumcast: node %s could not encode outbound %v: %v", n.id, msg.Kind, err)
		return
	}
	if err := n.svc.SendMessage(dest, procID, payload); err != nil {
		nlog.Warningf("plumcast: node %s could not send %s to %s: %v", n.id, procID, dest, err)
		if n.metrics != nil {
			n.metrics.Error(stats.ErrCannotSendPlumtreeMessage)
		}
		n.hv.Disconnect(dest, false)
		n.svc.RemovePeer(dest)
	}
}

// leave sends a farewell Disconnect to every active-view peer and
// deregisters from the Service, merging any still-in-flight
// delivered-but-unforgotten count into forgot_messages.
func (n *Node[M]) leave() {
	var errs cos.Errs
	for _, peer := range n.hv.ActiveView() {
		_, payload := encodeHyparviewMessage(peer.LocalID(), hyparview.Message[nodeid.NodeId]{
			Kind: hyparview.MsgDisconnect, Sender: n.id, Alive: false,
		})
		if err := n.svc.SendMessage(peer, transport.DisconnectCast, payload); err != nil {
			errs.Add(err)
		}
		// tear down the peer's send queue; the farewell just enqueued is
		// flushed on the way out
		n.svc.RemovePeer(peer)
	}
	if cnt, err := errs.JoinErr(); cnt > 0 {
		nlog.Warningf("plumcast: node %s farewell disconnects failed: %v", n.id, err)
	}
	if n.metrics != nil {
		for ; n.deliveredNotForgotten > 0; n.deliveredNotForgotten-- {
			n.metrics.ForgotMessage()
		}
	}
	n.svc.DeregisterLocalNode(n.id.LocalID(), n.metrics)
}

func encodeHyparviewMessage(dest nodeid.LocalNodeId, msg hyparview.Message[nodeid.NodeId]) (transport.ProcedureId, []byte) {
	switch msg.Kind {
	case hyparview.MsgJoin:
		return transport.JoinCast, wire.AppendJoin(nil, wire.JoinMessage{Destination: dest, Sender: msg.Sender})
	case hyparview.MsgForwardJoin:
		return transport.ForwardJoinCast, wire.AppendForwardJoin(nil, wire.ForwardJoinMessage{
			Destination: dest, Sender: msg.Sender, NewNode: msg.NewNode, TTL: msg.TTL,
		})
	case hyparview.MsgNeighbor:
		return transport.NeighborCast, wire.AppendNeighbor(nil, wire.NeighborMessage{
			Destination: dest, Sender: msg.Sender, HighPriority: msg.HighPriority,
		})
	case hyparview.MsgShuffle:
		return transport.ShuffleCast, wire.AppendShuffle(nil, wire.ShuffleMessage{
			Destination: dest, Sender: msg.Sender, Origin: msg.Origin, TTL: msg.TTL, Nodes: msg.Nodes,
		})
	case hyparview.MsgShuffleReply:
		return transport.ShuffleReplyCast, wire.AppendShuffleReply(nil, wire.ShuffleReplyMessage{
			Destination: dest, Sender: msg.Sender, Nodes: msg.Nodes,
		})
	default: // hyparview.MsgDisconnect
		return transport.DisconnectCast, wire.AppendDisconnect(nil, wire.DisconnectMessage{
			Destination: dest, Sender: msg.Sender, Alive: msg.Alive,
		})
	}
}

func decodeHyparviewMessage(procID transport.ProcedureId, payload []byte) (hyparview.Message[nodeid.NodeId], error) {
	switch procID {
	case transport.JoinCast:
		m, _, err := wire.DecodeJoin(payload)
		return hyparview.Message[nodeid.NodeId]{Kind: hyparview.MsgJoin, Sender: m.Sender}, err
	case transport.ForwardJoinCast:
		m, _, err := wire.DecodeForwardJoin(payload)
		return hyparview.Message[nodeid.NodeId]{Kind: hyparview.MsgForwardJoin, Sender: m.Sender, NewNode: m.NewNode, TTL: m.TTL}, err
	case transport.NeighborCast:
		m, _, err := wire.DecodeNeighbor(payload)
		return hyparview.Message[nodeid.NodeId]{Kind: hyparview.MsgNeighbor, Sender: m.Sender, HighPriority: m.HighPriority}, err
	case transport.ShuffleCast:
		m, _, err := wire.DecodeShuffle(payload)
		return hyparview.Message[nodeid.NodeId]{Kind: hyparview.MsgShuffle, Sender: m.Sender, Origin: m.Origin, TTL: m.TTL, Nodes: m.Nodes}, err
	case transport.ShuffleReplyCast:
		m, _, err := wire.DecodeShuffleReply(payload)
		return hyparview.Message[nodeid.NodeId]{Kind: hyparview.MsgShuffleReply, Sender: m.Sender, Nodes: m.Nodes}, err
	default: // transport.DisconnectCast
		m, _, err := wire.DecodeDisconnect(payload)
		return hyparview.Message[nodeid.NodeId]{Kind: hyparview.MsgDisconnect, Sender: m.Sender, Alive: m.Alive}, err
	}
}

func (n *Node[M]) encodePlumtreeMessage(dest nodeid.LocalNodeId, msg plumtree.ProtocolMessage[nodeid.NodeId, nodeid.MessageId, M]) (transport.ProcedureId, []byte, error) {
	switch msg.Kind {
	case plumtree.MsgGossip:
		payload, err := n.codec.Encode(msg.Payload)
		if err != nil {
			return 0, nil, err
		}
		return transport.GossipCast, wire.AppendGossip(nil, wire.GossipMessage{
			Destination: dest, Sender: msg.Sender, Round: msg.Round, ID: msg.ID, Payload: payload,
		}), nil
	case plumtree.MsgIhave:
		return transport.IhaveCast, wire.AppendIhave(nil, wire.IhaveMessage{
			Destination: dest, Sender: msg.Sender, MessageID: msg.ID, Round: msg.Round,
		}), nil
	case plumtree.MsgGraft:
		procID := transport.GraftCast
		var msgID *nodeid.MessageId
		if msg.HasID {
			id := msg.ID
			msgID = &id
		} else {
			procID = transport.GraftOptimizeCast
		}
		return procID, wire.AppendGraft(nil, wire.GraftMessage{
			Destination: dest, Sender: msg.Sender, MessageID: msgID, Round: msg.Round,
		}), nil
	default: // plumtree.MsgPrune
		return transport.PruneCast, wire.AppendPrune(nil, wire.PruneMessage{
			Destination: dest, Sender: msg.Sender,
		}), nil
	}
}

func (n *Node[M]) decodePlumtreeMessage(procID transport.ProcedureId, payload []byte) (plumtree.ProtocolMessage[nodeid.NodeId, nodeid.MessageId, M], error) {
	switch procID {
	case transport.GossipCast:
		m, _, err := wire.DecodeGossip(payload)
		if err != nil {
			return plumtree.ProtocolMessage[nodeid.NodeId, nodeid.MessageId, M]{}, err
		}
		app, err := n.codec.Decode(m.Payload)
		if err != nil {
			return plumtree.ProtocolMessage[nodeid.NodeId, nodeid.MessageId, M]{}, err
		}
		return plumtree.ProtocolMessage[nodeid.NodeId, nodeid.MessageId, M]{
			Kind: plumtree.MsgGossip, Sender: m.Sender, Round: m.Round, ID: m.ID, Payload: app,
		}, nil
	case transport.IhaveCast:
		m, _, err := wire.DecodeIhave(payload)
		return plumtree.ProtocolMessage[nodeid.NodeId, nodeid.MessageId, M]{
			Kind: plumtree.MsgIhave, Sender: m.Sender, Round: m.Round, ID: m.MessageID, HasID: true,
		}, err
	case transport.GraftCast, transport.GraftOptimizeCast:
		m, _, err := wire.DecodeGraft(payload)
		if err != nil {
			return plumtree.ProtocolMessage[nodeid.NodeId, nodeid.MessageId, M]{}, err
		}
		out := plumtree.ProtocolMessage[nodeid.NodeId, nodeid.MessageId, M]{
			Kind: plumtree.MsgGraft, Sender: m.Sender, Round: m.Round,
		}
		if m.MessageID != nil {
			out.ID = *m.MessageID
			out.HasID = true
		}
		return out, nil
	default: // transport.PruneCast
		m, _, err := wire.DecodePrune(payload)
		return plumtree.ProtocolMessage[nodeid.NodeId, nodeid.MessageId, M]{Kind: plumtree.MsgPrune, Sender: m.Sender}, err
	}
}
