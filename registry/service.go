// Package registry implements plumcast's Service: the long-lived task
// that owns the process-wide UDP transport plus the copy-on-write table
// mapping LocalNodeId to locally registered Nodes.
//
// The table is an immutable snapshot swapped atomically on every
// mutation, so the hot inbound-demux path never takes a lock.
// Register/Deregister are serialized through a command channel consumed
// by the Service's run loop instead of touching the table from
// arbitrary goroutines.
package registry

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/aistore-labs/plumcast/cmn/nlog"
	"github.com/aistore-labs/plumcast/hk"
	"github.com/aistore-labs/plumcast/nodeid"
	"github.com/aistore-labs/plumcast/stats"
	"github.com/aistore-labs/plumcast/transport"
	"github.com/aistore-labs/plumcast/wire"
)

var (
	errNonUDPPeer = errors.New("registry: peer address is not a *net.UDPAddr")

	// ErrInconsistentState reports a violated registry invariant: a
	// duplicate register or a deregister of an absent node. It is fatal
	// for the Service's Run loop.
	ErrInconsistentState = errors.New("registry: inconsistent state")
)

// NodeHandle is the receiving side of a locally registered Node: just
// enough surface for the Service to route an inbound frame to it and
// identify it for registry bookkeeping. The root plumcast package's
// *Node implements this.
type NodeHandle interface {
	LocalID() nodeid.LocalNodeId
	Deliver(procID transport.ProcedureId, from *net.UDPAddr, payload []byte)
}

type command struct {
	register   NodeHandle
	deregister nodeid.LocalNodeId
}

type localNodes map[nodeid.LocalNodeId]NodeHandle

// Service owns the transport and the local-node table. Run concurrently
// drives the transport server loop and the command queue that
// serializes table mutations; the client pool's per-peer send loops are
// supervised internally by transport.ClientPool, so there is no third
// top-level loop to poll for it.
type Service struct {
	addr   *net.UDPAddr
	server *transport.Server
	pool   *transport.ClientPool
	gen    nodeid.Generator

	nodes    localNodesPtr
	commands chan command

	metrics        *stats.ServiceMetrics
	removedNodeAgg *stats.NodeMetrics
}

// New binds a UDP socket at addr and constructs a Service around it.
// gen mints LocalNodeIds for new Nodes; metrics may be nil to disable
// Prometheus export while keeping counters live.
func New(addr string, gen nodeid.Generator, metrics *stats.ServiceMetrics) (*Service, error) {
	s := &Service{
		gen:      gen,
		commands: make(chan command, 64),
		metrics:  metrics,
		removedNodeAgg: stats.NewNodeMetrics(nil, "_removed"),
	}
	s.nodes.store(localNodes{})

	server, err := transport.Listen(addr, s.dispatch)
	if err != nil {
		return nil, err
	}
	s.server = server
	s.addr = server.LocalAddr()
	s.pool = transport.NewClientPool(server.Conn())
	return s, nil
}

const statsLogInterval = time.Minute

// Run drives the Service's two concurrent loops (transport server,
// command queue) until ctx is canceled or either terminates fatally;
// the first fatal error takes the whole Service down. While running,
// a housekeeping chore logs the Service's counter snapshot once a
// minute.
func (s *Service) Run(ctx context.Context) error {
	hkName := "registry.stats." + s.addr.String() + hk.NameSuffix
	hk.DefaultHK.Reg(hkName, s.logStats, statsLogInterval)
	hk.DefaultHK.Run()
	defer hk.DefaultHK.Unreg(hkName)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.server.Serve()
	})
	g.Go(func() error {
		return s.runCommands(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		// pool first, so its teardown flush still has a live socket
		s.pool.Close()
		s.server.Close()
		return nil
	})
	return g.Wait()
}

func (s *Service) logStats() time.Duration {
	if s.metrics != nil {
		nlog.Infof("registry %s: nodes=%d registered=%d deregistered=%d dest-unknown=%d",
			s.addr, len(s.nodes.load()), s.metrics.RegisteredNodes(),
			s.metrics.DeregisteredNodes(), s.metrics.DestinationUnknownMessages())
	}
	return 0
}

func (s *Service) runCommands(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.commands:
			if err := s.applyCommand(cmd); err != nil {
				return err
			}
		}
	}
}

func (s *Service) applyCommand(cmd command) error {
	cur := s.nodes.load()
	next := make(localNodes, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	if cmd.register != nil {
		id := cmd.register.LocalID()
		if _, dup := next[id]; dup {
			return errors.Wrapf(ErrInconsistentState, "local node %s already registered", id)
		}
		next[id] = cmd.register
		if s.metrics != nil {
			s.metrics.NodeRegistered()
		}
		nlog.Infof("registry: registered local node %s", id)
	} else {
		if _, found := next[cmd.deregister]; !found {
			return errors.Wrapf(ErrInconsistentState, "local node %s is not registered", cmd.deregister)
		}
		delete(next, cmd.deregister)
		if s.metrics != nil {
			s.metrics.NodeDeregistered()
		}
		nlog.Infof("registry: deregistered local node %s", cmd.deregister)
	}
	s.nodes.store(next)
	return nil
}

// GenerateNodeId mints a fresh NodeId for a new Node, retrying against
// the generator until the resulting LocalNodeId is not already
// registered.
func (s *Service) GenerateNodeId() nodeid.NodeId {
	for {
		local := s.gen.Generate()
		if _, found := s.nodes.load()[local]; !found {
			return nodeid.NewNodeId(s.addr, local)
		}
	}
}

// GetLocalNode returns the registered handle for id, if any.
func (s *Service) GetLocalNode(id nodeid.LocalNodeId) (NodeHandle, bool) {
	h, ok := s.nodes.load()[id]
	return h, ok
}

// GetLocalNodeOrDisconnect returns the registered handle for id, or, if
// it is absent, casts a Disconnect{alive=false} frame back to sender
// and reports ok=false. The frame's Sender is the absent id itself (at
// this Service's bind address), telling the remote peer the node it
// thinks is here is gone, so its membership engine evicts it.
func (s *Service) GetLocalNodeOrDisconnect(id nodeid.LocalNodeId, sender nodeid.NodeId) (NodeHandle, bool) {
	h, ok := s.nodes.load()[id]
	if ok {
		return h, true
	}
	if s.metrics != nil {
		s.metrics.DestinationUnknownMessage()
	}
	addr, isUDP := sender.Address().(*net.UDPAddr)
	if !isUDP {
		return nil, false
	}
	absent := nodeid.NewNodeId(s.addr, id)
	frame := wire.AppendDisconnect(nil, wire.DisconnectMessage{Destination: sender.LocalID(), Sender: absent, Alive: false})
	if err := s.pool.Cast(addr, transport.DisconnectCast, frame); err != nil {
		nlog.Warningf("registry: could not cast self-healing disconnect to %s: %v", addr, err)
	}
	return nil, false
}

// RegisterLocalNode enqueues node for registration. The mutation itself
// happens on the command loop, never synchronously on the caller's
// goroutine.
func (s *Service) RegisterLocalNode(node NodeHandle) {
	s.commands <- command{register: node}
}

// DeregisterLocalNode enqueues node id for removal, merging its final
// metrics snapshot into the Service-level removed-node aggregate first
// so long-lived counters do not regress when the node disappears.
func (s *Service) DeregisterLocalNode(id nodeid.LocalNodeId, final *stats.NodeMetrics) {
	if final != nil {
		final.MergeInto(s.removedNodeAgg)
	}
	s.commands <- command{deregister: id}
}

// Metrics exposes the Service's counters.
func (s *Service) Metrics() *stats.ServiceMetrics { return s.metrics }

// RemovedNodeMetrics exposes the process-level aggregate that
// deregistered nodes' counters are folded into.
func (s *Service) RemovedNodeMetrics() *stats.NodeMetrics { return s.removedNodeAgg }

// SendMessage casts one already-encoded RPC frame to peer's transport
// address; the client pool picks the queue class from procID.
func (s *Service) SendMessage(peer nodeid.NodeId, procID transport.ProcedureId, payload []byte) error {
	addr, ok := peer.Address().(*net.UDPAddr)
	if !ok {
		return errNonUDPPeer
	}
	return s.pool.Cast(addr, procID, payload)
}

// RemovePeer tears down the client pool's send queue for a peer that
// has been disconnected, so departed peers don't accumulate goroutines
// and queue memory for the life of the Service. Pending casts are
// flushed, and a later SendMessage to the same address transparently
// recreates the queue.
func (s *Service) RemovePeer(peer nodeid.NodeId) {
	if addr, ok := peer.Address().(*net.UDPAddr); ok {
		s.pool.RemovePeer(addr)
	}
}

func (s *Service) Addr() *net.UDPAddr { return s.addr }

// dispatch routes one inbound datagram. Every frame of both the
// hyparview and plumtree wire formats begins with a destination
// LocalNodeId immediately followed by a sender NodeId, so dispatch can
// decode just those two fields generically for routing and
// self-healing, handing the untouched payload to the target Node's
// Deliver for its own full decode.
func (s *Service) dispatch(procID transport.ProcedureId, from *net.UDPAddr, payload []byte) {
	dest, n, err := wire.DecodeLocalNodeId(payload)
	if err != nil {
		nlog.Warningf("transport: dropping runt frame (proc=%s) from %s", procID, from)
		return
	}
	if handle, found := s.GetLocalNode(dest); found {
		handle.Deliver(procID, from, payload)
		return
	}
	sender, _, err := wire.DecodeNodeId(payload[n:])
	if err != nil {
		if s.metrics != nil {
			s.metrics.DestinationUnknownMessage()
		}
		nlog.Warningf("registry: inbound frame for unknown local node %s from %s (sender undecodable)", dest, from)
		return
	}
	s.GetLocalNodeOrDisconnect(dest, sender)
}
