package wire

import (
	"github.com/aistore-labs/plumcast/nodeid"
	"github.com/pkg/errors"
)

// Plumtree frames carry a generic message payload as a length-prefixed
// byte string: a 4-byte big-endian length followed by that many opaque
// bytes. The root plumcast package marshals/unmarshals the payload's
// user type through its Codec before/after this layer ever sees it.

type GossipMessage struct {
	Destination nodeid.LocalNodeId
	Sender      nodeid.NodeId
	Round       uint16
	ID          nodeid.MessageId
	Payload     []byte
}

func AppendGossip(buf []byte, m GossipMessage) []byte {
	buf = AppendLocalNodeId(buf, m.Destination)
	buf = AppendNodeId(buf, m.Sender)
	buf = putUint16(buf, m.Round)
	buf = AppendMessageId(buf, m.ID)
	buf = putUint32(buf, uint32(len(m.Payload)))
	buf = append(buf, m.Payload...)
	return buf
}

func DecodeGossip(buf []byte) (GossipMessage, int, error) {
	dest, n, err := DecodeLocalNodeId(buf)
	if err != nil {
		return GossipMessage{}, 0, err
	}
	sender, sn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return GossipMessage{}, 0, err
	}
	n += sn
	round, rn, err := getUint16(buf[n:])
	if err != nil {
		return GossipMessage{}, 0, err
	}
	n += rn
	id, idn, err := DecodeMessageId(buf[n:])
	if err != nil {
		return GossipMessage{}, 0, err
	}
	n += idn
	payload, pn, err := decodeLengthPrefixed(buf[n:])
	if err != nil {
		return GossipMessage{}, 0, err
	}
	n += pn
	return GossipMessage{Destination: dest, Sender: sender, Round: round, ID: id, Payload: payload}, n, nil
}

func decodeLengthPrefixed(buf []byte) ([]byte, int, error) {
	size, n, err := getUint32(buf)
	if err != nil {
		return nil, 0, err
	}
	if uint64(len(buf)-n) < uint64(size) {
		return nil, 0, ErrShortBuffer
	}
	data := append([]byte(nil), buf[n:n+int(size)]...)
	return data, n + int(size), nil
}

type IhaveMessage struct {
	Destination nodeid.LocalNodeId
	Sender      nodeid.NodeId
	MessageID   nodeid.MessageId
	Round       uint16
	Realtime    bool
}

func AppendIhave(buf []byte, m IhaveMessage) []byte {
	buf = AppendLocalNodeId(buf, m.Destination)
	buf = AppendNodeId(buf, m.Sender)
	buf = AppendMessageId(buf, m.MessageID)
	buf = putUint16(buf, m.Round)
	buf = append(buf, boolByte(m.Realtime))
	return buf
}

func DecodeIhave(buf []byte) (IhaveMessage, int, error) {
	dest, n, err := DecodeLocalNodeId(buf)
	if err != nil {
		return IhaveMessage{}, 0, err
	}
	sender, sn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return IhaveMessage{}, 0, err
	}
	n += sn
	id, idn, err := DecodeMessageId(buf[n:])
	if err != nil {
		return IhaveMessage{}, 0, err
	}
	n += idn
	round, rn, err := getUint16(buf[n:])
	if err != nil {
		return IhaveMessage{}, 0, err
	}
	n += rn
	realtime, ln, err := getUint8(buf[n:])
	if err != nil {
		return IhaveMessage{}, 0, err
	}
	n += ln
	return IhaveMessage{Destination: dest, Sender: sender, MessageID: id, Round: round, Realtime: realtime != 0}, n, nil
}

// GraftMessage's MessageID is optional: a Graft that only promotes the
// link, without chasing a specific payload, carries no id. A presence
// byte preceding the field is what makes that representable on the
// wire; decoders accept both forms regardless of which procedure id
// carried them.
type GraftMessage struct {
	Destination nodeid.LocalNodeId
	Sender      nodeid.NodeId
	MessageID   *nodeid.MessageId
	Round       uint16
}

func AppendGraft(buf []byte, m GraftMessage) []byte {
	buf = AppendLocalNodeId(buf, m.Destination)
	buf = AppendNodeId(buf, m.Sender)
	if m.MessageID != nil {
		buf = append(buf, 1)
		buf = AppendMessageId(buf, *m.MessageID)
	} else {
		buf = append(buf, 0)
	}
	buf = putUint16(buf, m.Round)
	return buf
}

func DecodeGraft(buf []byte) (GraftMessage, int, error) {
	dest, n, err := DecodeLocalNodeId(buf)
	if err != nil {
		return GraftMessage{}, 0, err
	}
	sender, sn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return GraftMessage{}, 0, err
	}
	n += sn
	has, hn, err := getUint8(buf[n:])
	if err != nil {
		return GraftMessage{}, 0, err
	}
	n += hn
	var msgID *nodeid.MessageId
	switch has {
	case 0:
	case 1:
		id, idn, err := DecodeMessageId(buf[n:])
		if err != nil {
			return GraftMessage{}, 0, err
		}
		n += idn
		msgID = &id
	default:
		return GraftMessage{}, 0, errors.Wrapf(ErrInvalidInput, "graft: invalid has_message_id byte %d", has)
	}
	round, rn, err := getUint16(buf[n:])
	if err != nil {
		return GraftMessage{}, 0, err
	}
	n += rn
	return GraftMessage{Destination: dest, Sender: sender, MessageID: msgID, Round: round}, n, nil
}

type PruneMessage struct {
	Destination nodeid.LocalNodeId
	Sender      nodeid.NodeId
}

func AppendPrune(buf []byte, m PruneMessage) []byte {
	buf = AppendLocalNodeId(buf, m.Destination)
	buf = AppendNodeId(buf, m.Sender)
	return buf
}

func DecodePrune(buf []byte) (PruneMessage, int, error) {
	dest, n, err := DecodeLocalNodeId(buf)
	if err != nil {
		return PruneMessage{}, 0, err
	}
	sender, sn, err := DecodeNodeId(buf[n:])
	if err != nil {
		return PruneMessage{}, 0, err
	}
	n += sn
	return PruneMessage{Destination: dest, Sender: sender}, n, nil
}
