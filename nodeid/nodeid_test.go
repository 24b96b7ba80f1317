package nodeid

import (
	"math"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerialGenerator(t *testing.T) {
	g := NewSerialGenerator()
	require.EqualValues(t, 0, g.Generate().Value())
	require.EqualValues(t, 1, g.Generate().Value())
	require.EqualValues(t, 2, g.Generate().Value())
}

func TestSerialGeneratorWithOffsetWraps(t *testing.T) {
	g := NewSerialGeneratorWithOffset(math.MaxUint64)
	require.EqualValues(t, uint64(math.MaxUint64), g.Generate().Value())
	require.EqualValues(t, 0, g.Generate().Value())
	require.EqualValues(t, 1, g.Generate().Value())
}

func TestUnixNanoGeneratorDiffers(t *testing.T) {
	var g UnixNanoGenerator
	id0 := g.Generate()
	id1 := g.Generate()
	require.NotEqual(t, id0, id1)
}

func TestNodeIdEqual(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
	a := NewNodeId(addr, 1)
	b := NewNodeId(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}, 1)
	c := NewNodeId(addr, 2)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestSequencerNearWrapWarnsOnce(t *testing.T) {
	s := &Sequencer{next: math.MaxUint64 - (1 << 32)}
	var calls int
	s.OnNearWrap(func() { calls++ })
	s.Next()
	s.Next()
	require.Equal(t, 1, calls)
}
