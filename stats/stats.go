// Package stats provides the monotonic counters plumcast exposes for its
// Service and its Nodes, mirrored into Prometheus counters under the
// `plumcast_` namespace.
//
// Naming Convention (adapted from aistore's stats/target_stats.go header,
// trimmed to what this package actually tracks):
//
//	-> "*_total"         - monotonic counter
//	-> service subsystem  - counters owned by a Service (registered_nodes,
//	                        deregistered_nodes, destination_unknown_messages)
//	-> node subsystem     - counters owned by a single Node, read-from-
//	                        any-thread via atomics
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrKind labels the errors_total{kind=...} counter. Values match the set
// enumerated for Node-level error accounting.
type ErrKind string

const (
	ErrForgetUnknownMessage       ErrKind = "forget_unknown_message"
	ErrCannotSendHyParViewMessage ErrKind = "cannot_send_hyparview_message"
	ErrCannotSendPlumtreeMessage  ErrKind = "cannot_send_plumtree_message"
	ErrUnknownPlumtreeNode        ErrKind = "unknown_plumtree_node"
)

var allErrKinds = [...]ErrKind{
	ErrForgetUnknownMessage,
	ErrCannotSendHyParViewMessage,
	ErrCannotSendPlumtreeMessage,
	ErrUnknownPlumtreeNode,
}

// ServiceMetrics tracks process-wide counters owned by a Service: nodes
// registered/deregistered through it, and inbound RPCs whose destination
// local id no longer exists.
type ServiceMetrics struct {
	registeredNodes            atomic.Uint64
	deregisteredNodes          atomic.Uint64
	destinationUnknownMessages atomic.Uint64

	collectors []prometheus.Collector
}

// NewServiceMetrics builds a ServiceMetrics and registers its Prometheus
// collectors. reg may be nil, in which case the counters are still
// maintained but not exported.
func NewServiceMetrics(reg prometheus.Registerer) *ServiceMetrics {
	m := &ServiceMetrics{}
	m.collectors = []prometheus.Collector{
		counterFunc("plumcast", "service", "registered_nodes_total",
			"Number of nodes registered so far", func() float64 { return float64(m.registeredNodes.Load()) }),
		counterFunc("plumcast", "service", "deregistered_nodes_total",
			"Number of nodes deregistered so far", func() float64 { return float64(m.deregisteredNodes.Load()) }),
		counterFunc("plumcast", "service", "destination_unknown_messages_total",
			"Number of RPC messages received whose destination node is missing", func() float64 { return float64(m.destinationUnknownMessages.Load()) }),
	}
	if reg != nil {
		for _, c := range m.collectors {
			reg.MustRegister(c)
		}
	}
	return m
}

func (m *ServiceMetrics) NodeRegistered()            { m.registeredNodes.Add(1) }
func (m *ServiceMetrics) NodeDeregistered()          { m.deregisteredNodes.Add(1) }
func (m *ServiceMetrics) DestinationUnknownMessage() { m.destinationUnknownMessages.Add(1) }

func (m *ServiceMetrics) RegisteredNodes() uint64            { return m.registeredNodes.Load() }
func (m *ServiceMetrics) DeregisteredNodes() uint64          { return m.deregisteredNodes.Load() }
func (m *ServiceMetrics) DestinationUnknownMessages() uint64 { return m.destinationUnknownMessages.Load() }

// NodeMetrics tracks the per-Node counters: broadcast/forget/deliver
// activity, neighbor churn, isolation events, and a labeled
// errors_total. All fields are atomics so a Node's state machine
// goroutine and a caller reading metrics from another goroutine never
// race.
type NodeMetrics struct {
	broadcastedMessages   atomic.Uint64
	forgotMessages        atomic.Uint64
	deliveredMessages     atomic.Uint64
	connectedNeighbors    atomic.Uint64
	disconnectedNeighbors atomic.Uint64
	isolatedTimes         atomic.Uint64
	deisolatedTimes       atomic.Uint64
	errs                  [len(allErrKinds)]atomic.Uint64

	collectors []prometheus.Collector
}

// NewNodeMetrics builds a NodeMetrics for a single node identified by id
// (used only as a constant label so several nodes in one process can be
// told apart in exported metrics). reg may be nil.
func NewNodeMetrics(reg prometheus.Registerer, id string) *NodeMetrics {
	m := &NodeMetrics{}
	labels := prometheus.Labels{"node": id}
	m.collectors = []prometheus.Collector{
		counterFuncLabeled("plumcast", "node", "broadcasted_messages_total",
			"Number of messages broadcasted by this node", labels, func() float64 { return float64(m.broadcastedMessages.Load()) }),
		counterFuncLabeled("plumcast", "node", "forgot_messages_total",
			"Number of messages forgotten by this node", labels, func() float64 { return float64(m.forgotMessages.Load()) }),
		counterFuncLabeled("plumcast", "node", "delivered_messages_total",
			"Number of messages delivered to this node's application stream", labels, func() float64 { return float64(m.deliveredMessages.Load()) }),
		counterFuncLabeled("plumcast", "node", "connected_neighbors_total",
			"Number of NeighborUp events observed by this node", labels, func() float64 { return float64(m.connectedNeighbors.Load()) }),
		counterFuncLabeled("plumcast", "node", "disconnected_neighbors_total",
			"Number of NeighborDown events observed by this node", labels, func() float64 { return float64(m.disconnectedNeighbors.Load()) }),
		counterFuncLabeled("plumcast", "node", "isolated_times_total",
			"Number of times this node's active view became empty", labels, func() float64 { return float64(m.isolatedTimes.Load()) }),
		counterFuncLabeled("plumcast", "node", "deisolated_times_total",
			"Number of times this node recovered from isolation", labels, func() float64 { return float64(m.deisolatedTimes.Load()) }),
	}
	for i, kind := range allErrKinds {
		i := i
		l := prometheus.Labels{"node": id, "kind": string(kind)}
		m.collectors = append(m.collectors, counterFuncLabeled("plumcast", "node", "errors_total",
			"Number of errors observed by this node, by kind", l, func() float64 { return float64(m.errs[i].Load()) }))
	}
	if reg != nil {
		for _, c := range m.collectors {
			reg.MustRegister(c)
		}
	}
	return m
}

func (m *NodeMetrics) BroadcastedMessage()   { m.broadcastedMessages.Add(1) }
func (m *NodeMetrics) ForgotMessage()        { m.forgotMessages.Add(1) }
func (m *NodeMetrics) DeliveredMessage()     { m.deliveredMessages.Add(1) }
func (m *NodeMetrics) ConnectedNeighbor()    { m.connectedNeighbors.Add(1) }
func (m *NodeMetrics) DisconnectedNeighbor() { m.disconnectedNeighbors.Add(1) }
func (m *NodeMetrics) Isolated()             { m.isolatedTimes.Add(1) }
func (m *NodeMetrics) Deisolated()           { m.deisolatedTimes.Add(1) }

func (m *NodeMetrics) Error(kind ErrKind) {
	for i, k := range allErrKinds {
		if k == kind {
			m.errs[i].Add(1)
			return
		}
	}
}

func (m *NodeMetrics) BroadcastedMessages() uint64   { return m.broadcastedMessages.Load() }
func (m *NodeMetrics) ForgotMessages() uint64        { return m.forgotMessages.Load() }
func (m *NodeMetrics) DeliveredMessages() uint64     { return m.deliveredMessages.Load() }
func (m *NodeMetrics) ConnectedNeighbors() uint64    { return m.connectedNeighbors.Load() }
func (m *NodeMetrics) DisconnectedNeighbors() uint64 { return m.disconnectedNeighbors.Load() }
func (m *NodeMetrics) IsolatedTimes() uint64         { return m.isolatedTimes.Load() }
func (m *NodeMetrics) DeisolatedTimes() uint64       { return m.deisolatedTimes.Load() }

func (m *NodeMetrics) Errors(kind ErrKind) uint64 {
	for i, k := range allErrKinds {
		if k == kind {
			return m.errs[i].Load()
		}
	}
	return 0
}

// MergeInto folds a departing node's counters into the Service-level
// aggregate the Service keeps for deregistered nodes, so a removed
// node's activity isn't lost from exported sums.
func (m *NodeMetrics) MergeInto(agg *NodeMetrics) {
	agg.broadcastedMessages.Add(m.broadcastedMessages.Load())
	agg.forgotMessages.Add(m.forgotMessages.Load())
	agg.deliveredMessages.Add(m.deliveredMessages.Load())
	agg.connectedNeighbors.Add(m.connectedNeighbors.Load())
	agg.disconnectedNeighbors.Add(m.disconnectedNeighbors.Load())
	agg.isolatedTimes.Add(m.isolatedTimes.Load())
	agg.deisolatedTimes.Add(m.deisolatedTimes.Load())
	for i := range m.errs {
		agg.errs[i].Add(m.errs[i].Load())
	}
}

func counterFunc(namespace, subsystem, name, help string, f func() float64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, f)
}

func counterFuncLabeled(namespace, subsystem, name, help string, labels prometheus.Labels, f func() float64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, f)
}
