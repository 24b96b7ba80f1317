// Package transport implements the connectionless "cast" RPC this
// library sends its HyParView and Plumtree protocol messages over: every
// call is a single, unacknowledged UDP datagram prefixed with a 4-byte
// procedure id, routed to a per-peer send queue biased by priority.
//
// Every destination gets its own async send queue drained by its own
// goroutine, so callers never block on the network and a slow peer
// never stalls casts to another.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package transport

// ProcedureId identifies the wire-level RPC a cast datagram carries. The
// two namespaces (0x17CC_xxxx for HyParView, 0x17CD_xxxx for Plumtree)
// and every individual id below are wire-compatibility constants; a
// test asserts each literal so a future edit can't silently renumber
// one.
type ProcedureId uint32

const (
	JoinCast         ProcedureId = 0x17CC_0000
	ForwardJoinCast  ProcedureId = 0x17CC_0001
	NeighborCast     ProcedureId = 0x17CC_0002
	ShuffleCast      ProcedureId = 0x17CC_0003
	ShuffleReplyCast ProcedureId = 0x17CC_0004
	DisconnectCast   ProcedureId = 0x17CC_0005

	GossipCast        ProcedureId = 0x17CD_0000
	IhaveCast         ProcedureId = 0x17CD_0001
	GraftCast         ProcedureId = 0x17CD_0002
	GraftOptimizeCast ProcedureId = 0x17CD_0003
	PruneCast         ProcedureId = 0x17CD_0004
)

func (p ProcedureId) String() string {
	switch p {
	case JoinCast:
		return "hyparview.join"
	case ForwardJoinCast:
		return "hyparview.forward_join"
	case NeighborCast:
		return "hyparview.neighbor"
	case ShuffleCast:
		return "hyparview.shuffle"
	case ShuffleReplyCast:
		return "hyparview.shuffle_reply"
	case DisconnectCast:
		return "hyparview.disconnect"
	case GossipCast:
		return "plumtree.gossip"
	case IhaveCast:
		return "plumtree.ihave"
	case GraftCast:
		return "plumtree.graft"
	case GraftOptimizeCast:
		return "plumtree.graft.optimize"
	case PruneCast:
		return "plumtree.prune"
	default:
		return "unknown"
	}
}

// tier orders a peer's outbound queues by urgency: urgent is drained
// before normal, normal before bulk.
type tier int

const (
	tierBulk tier = iota
	tierNormal
	tierUrgent
)

// callOptions is the per-procedure queueing policy.
type callOptions struct {
	tier        tier
	forceWakeup bool
	maxQueueLen int
}

const (
	dfltQueueLen = 128
	maxQueueLen  = 4096 // bounds Gossip/IHave queueing toward a slow peer
)

// optionsFor pins the queueing policy per procedure: Join/ForwardJoin/
// Neighbor are urgent and force-wakeup; Shuffle/ShuffleReply/IHave run
// at normal priority; Gossip and IHave get the large bounded queue;
// Disconnect/Graft/Prune get no special treatment.
func optionsFor(id ProcedureId) callOptions {
	switch id {
	case JoinCast, ForwardJoinCast, NeighborCast:
		return callOptions{tier: tierUrgent, forceWakeup: true, maxQueueLen: dfltQueueLen}
	case ShuffleCast, ShuffleReplyCast:
		return callOptions{tier: tierNormal, maxQueueLen: dfltQueueLen}
	case IhaveCast:
		return callOptions{tier: tierNormal, maxQueueLen: maxQueueLen}
	case GossipCast:
		return callOptions{tier: tierBulk, maxQueueLen: maxQueueLen}
	default: // DisconnectCast, GraftCast, GraftOptimizeCast, PruneCast
		return callOptions{tier: tierBulk, maxQueueLen: dfltQueueLen}
	}
}
