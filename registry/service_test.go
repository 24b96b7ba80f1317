package registry

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aistore-labs/plumcast/nodeid"
	"github.com/aistore-labs/plumcast/stats"
	"github.com/aistore-labs/plumcast/transport"
	"github.com/aistore-labs/plumcast/wire"
)

// fixedGenerator hands out ids from a fixed list, one per call, then
// repeats the last one forever (enough to exercise the collision-retry
// loop deterministically without a real clock).
type fixedGenerator struct {
	mu  sync.Mutex
	ids []nodeid.LocalNodeId
	pos int
}

func (g *fixedGenerator) Generate() nodeid.LocalNodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[g.pos]
	if g.pos < len(g.ids)-1 {
		g.pos++
	}
	return id
}

type fakeHandle struct {
	id nodeid.LocalNodeId

	mu        sync.Mutex
	delivered []transport.ProcedureId
}

func (h *fakeHandle) LocalID() nodeid.LocalNodeId { return h.id }
func (h *fakeHandle) Deliver(procID transport.ProcedureId, _ *net.UDPAddr, _ []byte) {
	h.mu.Lock()
	h.delivered = append(h.delivered, procID)
	h.mu.Unlock()
}
func (h *fakeHandle) delivers() []transport.ProcedureId {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]transport.ProcedureId(nil), h.delivered...)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New("127.0.0.1:0", &fixedGenerator{ids: []nodeid.LocalNodeId{1}}, stats.NewServiceMetrics(nil))
	require.NoError(t, err)
	return s
}

func runService(t *testing.T, s *Service) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("service did not shut down")
		}
	})
	return cancel
}

func TestRegisterDeregisterRoundTrip(t *testing.T) {
	s := newTestService(t)
	runService(t, s)

	h := &fakeHandle{id: 1}
	s.RegisterLocalNode(h)
	require.Eventually(t, func() bool {
		got, ok := s.GetLocalNode(1)
		return ok && got == NodeHandle(h)
	}, time.Second, time.Millisecond)

	s.DeregisterLocalNode(1, stats.NewNodeMetrics(nil, "1"))
	require.Eventually(t, func() bool {
		_, ok := s.GetLocalNode(1)
		return !ok
	}, time.Second, time.Millisecond)
}

func TestDuplicateRegisterIsFatal(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.RegisterLocalNode(&fakeHandle{id: 1})
	s.RegisterLocalNode(&fakeHandle{id: 1})

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrInconsistentState)
	case <-time.After(time.Second):
		t.Fatal("Run did not terminate on duplicate register")
	}
}

func TestDeregisterAbsentNodeIsFatal(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.DeregisterLocalNode(42, nil)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrInconsistentState)
	case <-time.After(time.Second):
		t.Fatal("Run did not terminate on deregister of absent node")
	}
}

func TestGenerateNodeIdRetriesOnCollision(t *testing.T) {
	gen := &fixedGenerator{ids: []nodeid.LocalNodeId{1, 1, 2}}
	s, err := New("127.0.0.1:0", gen, stats.NewServiceMetrics(nil))
	require.NoError(t, err)
	runService(t, s)

	s.RegisterLocalNode(&fakeHandle{id: 1})
	require.Eventually(t, func() bool {
		_, ok := s.GetLocalNode(1)
		return ok
	}, time.Second, time.Millisecond)

	id := s.GenerateNodeId()
	require.Equal(t, nodeid.LocalNodeId(2), id.LocalID())
}

func TestGetLocalNodeOrDisconnectCastsSelfHealingDisconnect(t *testing.T) {
	s := newTestService(t)
	runService(t, s)

	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer listener.Close()
	senderLocal := nodeid.NewSerialGenerator().Generate()
	sender := nodeid.NewNodeId(listener.LocalAddr().(*net.UDPAddr), senderLocal)

	handle, ok := s.GetLocalNodeOrDisconnect(99, sender)
	require.False(t, ok)
	require.Nil(t, handle)

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 1024)
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 4)

	payload := buf[4:n]
	msg, _, err := wire.DecodeDisconnect(payload)
	require.NoError(t, err)
	require.Equal(t, senderLocal, msg.Destination)
	require.False(t, msg.Alive)
	require.Equal(t, nodeid.LocalNodeId(99), msg.Sender.LocalID())
}

func TestSendMessageRejectsNonUDPPeer(t *testing.T) {
	s := newTestService(t)
	runService(t, s)

	err := s.SendMessage(nodeid.NewNodeId(pipeAddr{}, 1), transport.DisconnectCast, nil)
	require.ErrorIs(t, err, errNonUDPPeer)
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

func TestDispatchRoutesToRegisteredHandle(t *testing.T) {
	s := newTestService(t)
	runService(t, s)

	h := &fakeHandle{id: 7}
	s.RegisterLocalNode(h)
	require.Eventually(t, func() bool {
		_, ok := s.GetLocalNode(7)
		return ok
	}, time.Second, time.Millisecond)

	frame := wire.AppendDisconnect(nil, wire.DisconnectMessage{
		Destination: 7,
		Sender:      nodeid.NewNodeId(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}, 1),
		Alive:       true,
	})
	s.dispatch(transport.DisconnectCast, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}, frame)
	require.Equal(t, []transport.ProcedureId{transport.DisconnectCast}, h.delivers())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
