package plumcast

import "github.com/aistore-labs/plumcast/nodeid"

// Message is a broadcasted application message delivered to a Node's
// receive stream. M is the payload type this Node was built with.
type Message[M any] struct {
	id      nodeid.MessageId
	payload M
}

func newMessage[M any](id nodeid.MessageId, payload M) Message[M] {
	return Message[M]{id: id, payload: payload}
}

func (m Message[M]) ID() nodeid.MessageId { return m.id }
func (m Message[M]) Payload() M           { return m.payload }
