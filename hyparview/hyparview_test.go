package hyparview

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testOpts(seed int64) Options {
	o := DefaultOptions()
	o.Rand = rand.New(rand.NewSource(seed))
	return o
}

func drainActions[P comparable](n *Node[P]) []Action[P] {
	var out []Action[P]
	for {
		a, ok := n.PollAction()
		if !ok {
			return out
		}
		out = append(out, a)
	}
}

func TestJoinAddsContactToActiveView(t *testing.T) {
	n := New("a", testOpts(1))
	n.Join("b")
	require.Contains(t, n.ActiveView(), "b")

	// admitting the contact notifies NeighborUp, then the Join is sent
	actions := drainActions(n)
	require.Len(t, actions, 2)
	require.Equal(t, ActionNotify, actions[0].Kind)
	require.Equal(t, NeighborUp, actions[0].Event.Kind)
	require.Equal(t, "b", actions[0].Event.Node)
	require.Equal(t, ActionSend, actions[1].Kind)
	require.Equal(t, MsgJoin, actions[1].Message.Kind)
}

func TestHandleJoinAdmitsSenderAndForwards(t *testing.T) {
	n := New("a", testOpts(2))
	n.addActiveView("existing")
	drainActions(n)

	n.HandleProtocolMessage(Message[string]{Kind: MsgJoin, Sender: "newcomer"})
	require.Contains(t, n.ActiveView(), "newcomer")

	var sawForward bool
	for _, a := range drainActions(n) {
		if a.Kind == ActionSend && a.Message.Kind == MsgForwardJoin {
			sawForward = true
			require.Equal(t, "newcomer", a.Message.NewNode)
			require.Equal(t, "existing", a.Destination)
		}
	}
	require.True(t, sawForward)
}

func TestForwardJoinWithZeroTTLAdmitsAndNotifiesNewNode(t *testing.T) {
	n := New("a", testOpts(3))
	n.HandleProtocolMessage(Message[string]{Kind: MsgForwardJoin, Sender: "b", NewNode: "c", TTL: 0})
	require.Contains(t, n.ActiveView(), "c")

	// the new node must be told it was admitted, or the link stays
	// one-sided
	var sawNeighbor bool
	for _, a := range drainActions(n) {
		if a.Kind == ActionSend && a.Message.Kind == MsgNeighbor && a.Destination == "c" {
			sawNeighbor = true
			require.True(t, a.Message.HighPriority)
		}
	}
	require.True(t, sawNeighbor)
}

func TestActiveViewEvictsOnOverflow(t *testing.T) {
	opts := testOpts(4)
	opts.ActiveViewSize = 2
	n := New("a", opts)
	n.addActiveView("p1")
	n.addActiveView("p2")
	drainActions(n)
	n.addActiveView("p3")
	require.Len(t, n.ActiveView(), 2)
	require.Contains(t, n.ActiveView(), "p3")

	var sawDown, sawDisconnectSend bool
	for _, a := range drainActions(n) {
		if a.Kind == ActionNotify && a.Event.Kind == NeighborDown {
			sawDown = true
		}
		if a.Kind == ActionSend && a.Message.Kind == MsgDisconnect {
			sawDisconnectSend = true
		}
	}
	require.True(t, sawDown)
	require.True(t, sawDisconnectSend)
}

func TestDisconnectMovesAliveNodeToPassiveView(t *testing.T) {
	n := New("a", testOpts(5))
	n.addActiveView("b")
	drainActions(n)
	n.Disconnect("b", true)
	require.NotContains(t, n.ActiveView(), "b")
	require.Contains(t, n.PassiveView(), "b")

	var sawDisconnect bool
	for _, a := range drainActions(n) {
		if a.Kind == ActionDisconnect {
			sawDisconnect = true
			require.Equal(t, "b", a.Destination)
		}
	}
	require.True(t, sawDisconnect)
}

func TestActiveViewEvictionEmitsDisconnectAction(t *testing.T) {
	opts := testOpts(4)
	opts.ActiveViewSize = 2
	n := New("a", opts)
	n.addActiveView("p1")
	n.addActiveView("p2")
	drainActions(n)
	n.addActiveView("p3")

	var sawDisconnect bool
	for _, a := range drainActions(n) {
		if a.Kind == ActionDisconnect {
			sawDisconnect = true
		}
	}
	require.True(t, sawDisconnect)
}

func TestHandleNeighborRejectsLowPriorityWhenFull(t *testing.T) {
	opts := testOpts(6)
	opts.ActiveViewSize = 1
	n := New("a", opts)
	n.addActiveView("existing")
	drainActions(n)

	n.HandleProtocolMessage(Message[string]{Kind: MsgNeighbor, Sender: "candidate", HighPriority: false})
	require.NotContains(t, n.ActiveView(), "candidate")

	n.HandleProtocolMessage(Message[string]{Kind: MsgNeighbor, Sender: "candidate", HighPriority: true})
	require.Contains(t, n.ActiveView(), "candidate")
}

func TestFillActiveViewPromotesFromPassiveView(t *testing.T) {
	opts := testOpts(7)
	opts.ActiveViewSize = 2
	n := New("a", opts)
	n.addPassiveView("p1")
	n.addPassiveView("p2")
	n.FillActiveView()
	require.Len(t, n.ActiveView(), 2)
	require.Empty(t, n.PassiveView())
}

func TestShuffleReplyMergesIntoPassiveView(t *testing.T) {
	n := New("a", testOpts(8))
	n.HandleProtocolMessage(Message[string]{Kind: MsgShuffleReply, Nodes: []string{"x", "y"}})
	require.Contains(t, n.PassiveView(), "x")
	require.Contains(t, n.PassiveView(), "y")
}

func TestShuffleForwardsWhenTTLPositive(t *testing.T) {
	n := New("a", testOpts(9))
	n.addActiveView("other")
	drainActions(n)

	n.HandleProtocolMessage(Message[string]{Kind: MsgShuffle, Sender: "sender-not-in-view", Origin: "origin", TTL: 2, Nodes: []string{"z"}})
	actions := drainActions(n)
	require.Len(t, actions, 1)
	require.Equal(t, MsgShuffle, actions[0].Message.Kind)
	require.EqualValues(t, 1, actions[0].Message.TTL)
}
