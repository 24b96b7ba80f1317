// Package wire implements plumcast's on-the-wire frame codec: the exact
// byte layouts for HyParView and Plumtree protocol messages. Primitive
// integers are big-endian. These layouts are a compatibility surface;
// changing any of them breaks interop with deployed peers.
//
// Every Decode function follows the same short-buffer convention: if
// buf does not yet hold enough bytes for the value being decoded, it
// returns ErrShortBuffer rather than a hard error, so a caller feeding
// a frame in several chunks can simply retry once more bytes have
// arrived. Decoder, in decoder.go, wraps that convention into a
// stateful multi-feed reader.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrShortBuffer is returned by Decode* functions when buf holds a valid
// but incomplete prefix of the value being decoded.
var ErrShortBuffer = errors.New("wire: short buffer")

// ErrInvalidInput is wrapped (via pkg/errors) around malformed-frame
// errors: bad socket-address version tags and out-of-range Graft
// presence bytes. A truncated frame, including one whose length prefix
// runs past the end of buf, is not reported as ErrInvalidInput; it
// yields ErrShortBuffer, since these functions cannot tell a cut-off
// datagram from a prefix that more bytes would complete.
var ErrInvalidInput = errors.New("wire: invalid input")

func putUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func getUint8(buf []byte) (byte, int, error) {
	if len(buf) < 1 {
		return 0, 0, ErrShortBuffer
	}
	return buf[0], 1, nil
}

func getUint16(buf []byte) (uint16, int, error) {
	if len(buf) < 2 {
		return 0, 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint16(buf), 2, nil
}

func getUint32(buf []byte) (uint32, int, error) {
	if len(buf) < 4 {
		return 0, 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint32(buf), 4, nil
}

func getUint64(buf []byte) (uint64, int, error) {
	if len(buf) < 8 {
		return 0, 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint64(buf), 8, nil
}
