package dhcpwire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// Decode errors. DHCP runs over a broadcast medium, so callers are
// expected to drop the offending datagram and carry on; nothing here is
// fatal to the server.
var (
	// ErrTruncated covers every case where the buffer ends before the
	// format says it should: short header, option length running past
	// the end, missing length byte.
	ErrTruncated = errors.New("dhcpwire: truncated message")

	// ErrBadMagic means the magic cookie at offset 236 is absent.
	ErrBadMagic = errors.New("dhcpwire: missing magic cookie")

	// ErrBadOp means the op field is neither BOOTREQUEST nor BOOTREPLY.
	ErrBadOp = errors.New("dhcpwire: invalid op")

	// ErrBadHWAddr means hlen does not fit in the chaddr field.
	ErrBadHWAddr = errors.New("dhcpwire: invalid hardware address length")
)

// Byte offsets of the fixed header fields.
const (
	offOp     = 0
	offHType  = 1
	offHLen   = 2
	offHops   = 3
	offXID    = 4
	offSecs   = 8
	offFlags  = 10
	offCIAddr = 12
	offYIAddr = 16
	offSIAddr = 20
	offGIAddr = 24
	offCHAddr = 28
	offSName  = 44
	offFile   = 108
	offMagic  = 236
)

// Decode parses a raw datagram into a Message. Unknown option tags are
// preserved as opaque payloads rather than rejected. The input buffer is
// not retained; all byte fields are copied.
func Decode(data []byte) (*Message, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}

	op := data[offOp]
	if op != OpRequest && op != OpReply {
		return nil, fmt.Errorf("%w: %d", ErrBadOp, op)
	}

	if [4]byte(data[offMagic:offMagic+4]) != magicCookie {
		return nil, ErrBadMagic
	}

	hlen := data[offHLen]
	if hlen > maxHWAddrLen {
		return nil, fmt.Errorf("%w: %d", ErrBadHWAddr, hlen)
	}

	m := &Message{
		Op:         op,
		HType:      data[offHType],
		HLen:       hlen,
		Hops:       data[offHops],
		XID:        binary.BigEndian.Uint32(data[offXID:]),
		Secs:       binary.BigEndian.Uint16(data[offSecs:]),
		Flags:      binary.BigEndian.Uint16(data[offFlags:]),
		ClientIP:   ip4At(data, offCIAddr),
		YourIP:     ip4At(data, offYIAddr),
		ServerIP:   ip4At(data, offSIAddr),
		RelayIP:    ip4At(data, offGIAddr),
		ServerName: nulTrimmed(data[offSName:offFile]),
		BootFile:   nulTrimmed(data[offFile:offMagic]),
	}

	m.HWAddr = make(net.HardwareAddr, hlen)
	copy(m.HWAddr, data[offCHAddr:offCHAddr+int(hlen)])

	opts, err := decodeOptions(data[headerLen:])
	if err != nil {
		return nil, err
	}
	m.Options = opts

	return m, nil
}

// decodeOptions walks the TLV region tag by tag until the END marker or
// buffer exhaustion. Every length byte is checked against the remaining
// buffer before it is trusted.
func decodeOptions(data []byte) ([]Option, error) {
	var opts []Option
	i := 0
	for i < len(data) {
		tag := data[i]
		switch tag {
		case tagPad:
			i++
			continue
		case tagEnd:
			return opts, nil
		}

		if i+1 >= len(data) {
			return nil, fmt.Errorf("%w: option %d has no length", ErrTruncated, tag)
		}
		length := int(data[i+1])
		if i+2+length > len(data) {
			return nil, fmt.Errorf("%w: option %d length %d exceeds buffer", ErrTruncated, tag, length)
		}

		payload := make([]byte, length)
		copy(payload, data[i+2:i+2+length])
		opts = append(opts, Option{Tag: tag, Data: payload})
		i += 2 + length
	}
	return nil, fmt.Errorf("%w: options region not terminated", ErrTruncated)
}

func ip4At(data []byte, off int) net.IP {
	ip := make(net.IP, 4)
	copy(ip, data[off:off+4])
	return ip
}

func nulTrimmed(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
