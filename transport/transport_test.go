package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProcedureIdsArePinned(t *testing.T) {
	cases := map[ProcedureId]uint32{
		JoinCast:          0x17CC_0000,
		ForwardJoinCast:   0x17CC_0001,
		NeighborCast:      0x17CC_0002,
		ShuffleCast:       0x17CC_0003,
		ShuffleReplyCast:  0x17CC_0004,
		DisconnectCast:    0x17CC_0005,
		GossipCast:        0x17CD_0000,
		IhaveCast:         0x17CD_0001,
		GraftCast:         0x17CD_0002,
		GraftOptimizeCast: 0x17CD_0003,
		PruneCast:         0x17CD_0004,
	}
	for id, want := range cases {
		require.EqualValues(t, want, id)
	}
}

func TestCastRoundTrip(t *testing.T) {
	recv := make(chan ProcedureId, 1)
	payloadCh := make(chan []byte, 1)
	srv, err := Listen("127.0.0.1:0", func(procID ProcedureId, _ *net.UDPAddr, payload []byte) {
		recv <- procID
		payloadCh <- payload
	})
	require.NoError(t, err)
	defer srv.Close()

	go srv.Serve()

	pool := NewClientPool(srv.conn)
	defer pool.Close()

	err = pool.Cast(srv.LocalAddr(), JoinCast, []byte("hello"))
	require.NoError(t, err)

	select {
	case procID := <-recv:
		require.Equal(t, JoinCast, procID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cast")
	}
	require.Equal(t, []byte("hello"), <-payloadCh)
}

func TestForceWakeupDropsOldest(t *testing.T) {
	q := newPeerQueue(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1})
	opts := optionsFor(JoinCast)

	for i := 0; i < dfltQueueLen; i++ {
		require.NoError(t, q.enqueue(opts, call{procID: JoinCast, payload: []byte{byte(i)}}))
	}
	// queue now full; next force_wakeup cast must still succeed by
	// dropping the oldest entry rather than returning ErrQueueFull.
	require.NoError(t, q.enqueue(opts, call{procID: JoinCast, payload: []byte{0xff}}))
	require.Len(t, q.urgent, dfltQueueLen)
}

// A procedure's own bound applies even when its tier's channel has
// spare capacity: Shuffle shares the normal tier with IHave but caps at
// the default depth, not IHave's.
func TestPerProcedureQueueBound(t *testing.T) {
	q := newPeerQueue(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1})
	opts := optionsFor(ShuffleCast)

	for i := 0; i < dfltQueueLen; i++ {
		require.NoError(t, q.enqueue(opts, call{procID: ShuffleCast}))
	}
	require.ErrorIs(t, q.enqueue(opts, call{procID: ShuffleCast}), ErrQueueFull)

	// IHave on the same tier keeps going up to its deeper bound
	require.NoError(t, q.enqueue(optionsFor(IhaveCast), call{procID: IhaveCast}))
}

func TestRemovePeerTearsDownQueueAndFlushes(t *testing.T) {
	recv := make(chan []byte, 1)
	srv, err := Listen("127.0.0.1:0", func(_ ProcedureId, _ *net.UDPAddr, payload []byte) {
		recv <- payload
	})
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	pool := NewClientPool(srv.conn)
	defer pool.Close()

	require.NoError(t, pool.Cast(srv.LocalAddr(), DisconnectCast, []byte("bye")))
	pool.RemovePeer(srv.LocalAddr())

	pool.mu.Lock()
	require.Empty(t, pool.peers)
	pool.mu.Unlock()

	// the farewell enqueued just before teardown still reaches the wire
	select {
	case payload := <-recv:
		require.Equal(t, []byte("bye"), payload)
	case <-time.After(2 * time.Second):
		t.Fatal("queued cast was dropped on RemovePeer")
	}
}
