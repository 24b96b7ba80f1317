package transport

import (
	"encoding/binary"
	"errors"
	"net"
	"sync"

	"github.com/aistore-labs/plumcast/cmn/debug"
	"github.com/aistore-labs/plumcast/cmn/nlog"
)

const (
	procIDSize      = 4
	maxDatagramSize = 65507 // max UDP payload over IPv4
)

// ErrQueueFull is returned by ClientPool.Cast when a peer's send queue
// for the call's tier already holds the call's per-procedure bound (or
// the tier is full) and the call isn't marked force_wakeup
// (force_wakeup calls instead drop the oldest queued datagram to make
// room, trading an older membership message for the newer one).
var ErrQueueFull = errors.New("transport: send queue full")

// Handler processes one inbound cast. The payload excludes the
// procedure-id prefix; it is whatever the wire package encoded for that
// procedure (a destination LocalNodeId followed by the protocol message
// body).
type Handler func(procID ProcedureId, from *net.UDPAddr, payload []byte)

// Server receives cast datagrams on a bound UDP socket and dispatches
// them to a Handler. One Server is created per local Node address.
type Server struct {
	conn    *net.UDPConn
	handler Handler

	closeOnce sync.Once
	done      chan struct{}
}

// Listen binds a UDP socket at addr (host:port, port 0 picks a free
// port) and returns a Server ready to Serve.
func Listen(addr string, h Handler) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Server{conn: conn, handler: h, done: make(chan struct{})}, nil
}

func (s *Server) LocalAddr() *net.UDPAddr { return s.conn.LocalAddr().(*net.UDPAddr) }

// Conn exposes the underlying socket so a ClientPool can share it for
// sending: one bound socket does double duty as the inbound listener
// and the outbound source address.
func (s *Server) Conn() *net.UDPConn { return s.conn }

// Serve reads datagrams until Close is called. It returns nil on a clean
// Close and the underlying socket error otherwise, so the caller can
// distinguish shutdown from a fatal transport failure.
func (s *Server) Serve() error {
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}
		if n < procIDSize {
			nlog.Warningf("transport: dropping runt datagram (%d bytes) from %s", n, from)
			continue
		}
		procID := ProcedureId(binary.BigEndian.Uint32(buf[:procIDSize]))
		payload := make([]byte, n-procIDSize)
		copy(payload, buf[procIDSize:n])
		s.handler(procID, from, payload)
	}
}

func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}

type call struct {
	procID  ProcedureId
	payload []byte
}

// peerQueue is one destination's outbound mailbox: three priority tiers,
// each drained FIFO, with urgent always preferred over normal and normal
// over bulk. Channel capacities are sized for the deepest procedure on
// each tier; the per-procedure bound is enforced in enqueue.
type peerQueue struct {
	addr   *net.UDPAddr
	urgent chan call
	normal chan call
	bulk   chan call
	stopCh chan struct{}
}

func newPeerQueue(addr *net.UDPAddr) *peerQueue {
	return &peerQueue{
		addr:   addr,
		urgent: make(chan call, dfltQueueLen),
		normal: make(chan call, maxQueueLen),
		bulk:   make(chan call, maxQueueLen),
		stopCh: make(chan struct{}),
	}
}

func (q *peerQueue) channel(t tier) chan call {
	switch t {
	case tierUrgent:
		return q.urgent
	case tierNormal:
		return q.normal
	default:
		return q.bulk
	}
}

// enqueue applies opts' per-procedure queue bound (len is approximate
// under concurrent enqueuers, which is fine for a shedding bound) and,
// for force_wakeup calls, drops the oldest queued datagram instead of
// failing, trading an older membership message for the newer one.
func (q *peerQueue) enqueue(opts callOptions, c call) error {
	ch := q.channel(opts.tier)
	if len(ch) < opts.maxQueueLen {
		select {
		case ch <- c:
			return nil
		default:
		}
	}
	if !opts.forceWakeup {
		return ErrQueueFull
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- c:
		return nil
	default:
		return ErrQueueFull
	}
}

// ClientPool sends casts to any number of peers, one send goroutine per
// peer so a slow or unreachable peer never blocks casts to another.
type ClientPool struct {
	conn *net.UDPConn

	mu    sync.Mutex
	peers map[string]*peerQueue
	wg    sync.WaitGroup
}

// NewClientPool wraps a socket (typically the same one a Server listens
// on) for sending. conn is never closed by ClientPool; the owner closes
// it via Server.Close.
func NewClientPool(conn *net.UDPConn) *ClientPool {
	return &ClientPool{conn: conn, peers: make(map[string]*peerQueue)}
}

// Cast enqueues one cast for addr and returns once it is queued (or
// dropped into a full queue's place via force_wakeup), never once it is
// actually written to the socket. Fire-and-forget: no reply, no retry.
func (p *ClientPool) Cast(addr *net.UDPAddr, procID ProcedureId, payload []byte) error {
	q := p.getOrCreate(addr)
	return q.enqueue(optionsFor(procID), call{procID: procID, payload: payload})
}

func (p *ClientPool) getOrCreate(addr *net.UDPAddr) *peerQueue {
	key := addr.String()
	p.mu.Lock()
	if q, ok := p.peers[key]; ok {
		p.mu.Unlock()
		return q
	}
	q := newPeerQueue(addr)
	p.peers[key] = q
	p.mu.Unlock()

	p.wg.Add(1)
	go p.sendLoop(q)
	return q
}

func (p *ClientPool) sendLoop(q *peerQueue) {
	defer p.wg.Done()
	for {
		select {
		case c := <-q.urgent:
			p.write(q.addr, c)
			continue
		default:
		}
		select {
		case c := <-q.urgent:
			p.write(q.addr, c)
		case c := <-q.normal:
			p.write(q.addr, c)
		case c := <-q.bulk:
			p.write(q.addr, c)
		case <-q.stopCh:
			p.drainAndExit(q)
			return
		}
	}
}

// drainAndExit flushes whatever was queued before teardown; a farewell
// Disconnect enqueued just before RemovePeer should still reach the
// wire.
func (p *ClientPool) drainAndExit(q *peerQueue) {
	for {
		select {
		case c := <-q.urgent:
			p.write(q.addr, c)
		case c := <-q.normal:
			p.write(q.addr, c)
		case c := <-q.bulk:
			p.write(q.addr, c)
		default:
			return
		}
	}
}

func (p *ClientPool) write(addr *net.UDPAddr, c call) {
	debug.Assert(procIDSize+len(c.payload) <= maxDatagramSize)
	buf := make([]byte, procIDSize+len(c.payload))
	binary.BigEndian.PutUint32(buf, uint32(c.procID))
	copy(buf[procIDSize:], c.payload)
	if _, err := p.conn.WriteToUDP(buf, addr); err != nil {
		nlog.Warningf("transport: %s to %s failed: %v", c.procID, addr, err)
	}
}

// Close stops every peer's send goroutine and waits for them to exit. It
// does not close the underlying connection.
func (p *ClientPool) Close() {
	p.mu.Lock()
	for _, q := range p.peers {
		close(q.stopCh)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// RemovePeer tears down the queue for a peer that has been disconnected,
// so a long-departed peer's goroutine doesn't linger forever.
func (p *ClientPool) RemovePeer(addr *net.UDPAddr) {
	key := addr.String()
	p.mu.Lock()
	q, ok := p.peers[key]
	if ok {
		delete(p.peers, key)
	}
	p.mu.Unlock()
	if ok {
		close(q.stopCh)
	}
}
