package wire

import (
	"net"

	"github.com/pkg/errors"
)

const (
	tagIPv4 byte = 4
	tagIPv6 byte = 6
)

// AppendSocketAddr appends addr's wire encoding to buf: a one-byte IP
// version tag (4 or 6) followed by a fixed-size body. v4 bodies are 4
// bytes of address plus a 2-byte big-endian port; v6 bodies add a
// 4-byte flowinfo and a 4-byte scope id (Go's net.UDPAddr carries no
// flowinfo, so that field is always encoded as zero; scope id comes
// from the zone's interface index when the zone names one, zero
// otherwise).
func AppendSocketAddr(buf []byte, addr *net.UDPAddr) []byte {
	if ip4 := addr.IP.To4(); ip4 != nil {
		buf = append(buf, tagIPv4)
		buf = append(buf, ip4...)
		buf = putUint16(buf, uint16(addr.Port))
		return buf
	}
	ip16 := addr.IP.To16()
	if ip16 == nil {
		ip16 = make(net.IP, 16)
	}
	buf = append(buf, tagIPv6)
	buf = append(buf, ip16...)
	buf = putUint16(buf, uint16(addr.Port))
	buf = putUint32(buf, 0)
	buf = putUint32(buf, uint32(scopeID(addr.Zone)))
	return buf
}

func scopeID(zone string) int {
	if zone == "" {
		return 0
	}
	if iface, err := net.InterfaceByName(zone); err == nil {
		return iface.Index
	}
	return 0
}

// DecodeSocketAddr decodes a SocketAddr from the front of buf, returning
// the number of bytes consumed. It returns ErrShortBuffer if buf is a
// valid but incomplete prefix, or an ErrInvalidInput-wrapped error if
// the version tag is neither 4 nor 6.
func DecodeSocketAddr(buf []byte) (*net.UDPAddr, int, error) {
	tag, n, err := getUint8(buf)
	if err != nil {
		return nil, 0, err
	}
	switch tag {
	case tagIPv4:
		if len(buf) < n+4+2 {
			return nil, 0, ErrShortBuffer
		}
		ip := net.IP(append(net.IP(nil), buf[n:n+4]...))
		n += 4
		port, pn, err := getUint16(buf[n:])
		if err != nil {
			return nil, 0, err
		}
		n += pn
		return &net.UDPAddr{IP: ip, Port: int(port)}, n, nil
	case tagIPv6:
		if len(buf) < n+16+2+4+4 {
			return nil, 0, ErrShortBuffer
		}
		ip := net.IP(append(net.IP(nil), buf[n:n+16]...))
		n += 16
		port, pn, err := getUint16(buf[n:])
		if err != nil {
			return nil, 0, err
		}
		n += pn
		// flowinfo: decoded and discarded, net.UDPAddr has no field for it
		_, fn, err := getUint32(buf[n:])
		if err != nil {
			return nil, 0, err
		}
		n += fn
		scope, sn, err := getUint32(buf[n:])
		if err != nil {
			return nil, 0, err
		}
		n += sn
		addr := &net.UDPAddr{IP: ip, Port: int(port)}
		if scope != 0 {
			if iface, err := net.InterfaceByIndex(int(scope)); err == nil {
				addr.Zone = iface.Name
			}
		}
		return addr, n, nil
	default:
		return nil, 0, errors.Wrapf(ErrInvalidInput, "socket addr: unknown version tag %d", tag)
	}
}

// SocketAddrLen returns the exact wire length of addr's encoding.
func SocketAddrLen(addr *net.UDPAddr) int {
	if addr.IP.To4() != nil {
		return 1 + 4 + 2
	}
	return 1 + 16 + 2 + 4 + 4
}
