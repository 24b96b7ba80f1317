package plumcast

// Codec marshals a Node's application payload type to and from the byte
// string a Gossip frame carries on the wire. The core itself never
// inspects the bytes; length-prefixing is the wire layer's business.
type Codec[M any] interface {
	Encode(M) ([]byte, error)
	Decode([]byte) (M, error)
}

// ByteCodec is the identity codec for M = []byte: the payload is
// carried verbatim, with no further framing.
type ByteCodec struct{}

func (ByteCodec) Encode(m []byte) ([]byte, error) { return m, nil }
func (ByteCodec) Decode(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil }
