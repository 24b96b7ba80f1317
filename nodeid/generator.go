package nodeid

import (
	"sync"
	"time"
)

// Generator mints LocalNodeIds for newly constructed Nodes within a
// Service. If the resulting id collides with one already registered,
// the Service calls Generate again until it gets a free one.
type Generator interface {
	Generate() LocalNodeId
}

// SerialGenerator hands out sequential ids starting from an offset,
// wrapping around on overflow.
type SerialGenerator struct {
	mu     sync.Mutex
	nextID uint64
}

// NewSerialGenerator starts numbering at 0.
func NewSerialGenerator() *SerialGenerator { return &SerialGenerator{} }

// NewSerialGeneratorWithOffset starts numbering at start.
func NewSerialGeneratorWithOffset(start uint64) *SerialGenerator {
	return &SerialGenerator{nextID: start}
}

func (g *SerialGenerator) Generate() LocalNodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++ // wraps on overflow
	return LocalNodeId(id)
}

// UnixNanoGenerator hands out ids derived from the wall clock, in
// nanoseconds since the Unix epoch. Two calls within the same clock
// tick can collide; the Service's retry-on-collision loop covers that.
type UnixNanoGenerator struct{}

func (UnixNanoGenerator) Generate() LocalNodeId {
	return LocalNodeId(uint64(time.Now().UnixNano()))
}

// Sequencer assigns monotonically increasing per-node sequence numbers
// to outbound messages, underlying MessageId.Seqno. Wraparound past
// 2^64 is undefined behavior for the protocol; Sequencer fires the
// OnNearWrap hook once, the first time the counter comes within 2^32 of
// wrapping, and otherwise keeps counting.
type Sequencer struct {
	mu         sync.Mutex
	next       uint64
	warned     bool
	onNearWrap func()
}

const nearWrapThreshold = ^uint64(0) - (1 << 32)

func NewSequencer() *Sequencer { return &Sequencer{} }

// OnNearWrap installs a callback invoked (at most once) the first time
// Next() returns a value past the wraparound warning threshold. Kept as
// a hook rather than a direct cmn/nlog call so this package stays free
// of a logging dependency; the root plumcast package wires it to
// nlog.Warningf.
func (s *Sequencer) OnNearWrap(f func()) {
	s.mu.Lock()
	s.onNearWrap = f
	s.mu.Unlock()
}

func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	if !s.warned && id >= nearWrapThreshold {
		s.warned = true
		if s.onNearWrap != nil {
			s.onNearWrap()
		}
	}
	return id
}
