package dhcpwire

import (
	"encoding/binary"
	"net"
)

// Encode serializes m into wire form: fixed header, magic cookie,
// options in their stored order, END marker, then zero padding up to the
// minimum legal packet size. Encoding never fails; a Message is validated
// by construction.
func (m *Message) Encode() []byte {
	size := headerLen
	for _, opt := range m.Options {
		size += 2 + len(opt.Data)
	}
	size++ // END
	if size < minPacketLen {
		size = minPacketLen
	}

	buf := make([]byte, size)
	buf[offOp] = m.Op
	buf[offHType] = m.HType
	buf[offHLen] = m.HLen
	buf[offHops] = m.Hops
	binary.BigEndian.PutUint32(buf[offXID:], m.XID)
	binary.BigEndian.PutUint16(buf[offSecs:], m.Secs)
	binary.BigEndian.PutUint16(buf[offFlags:], m.Flags)
	putIP4(buf[offCIAddr:], m.ClientIP)
	putIP4(buf[offYIAddr:], m.YourIP)
	putIP4(buf[offSIAddr:], m.ServerIP)
	putIP4(buf[offGIAddr:], m.RelayIP)

	// chaddr is padded or truncated to the declared hardware length.
	hw := m.HWAddr
	if len(hw) > int(m.HLen) {
		hw = hw[:m.HLen]
	}
	copy(buf[offCHAddr:offCHAddr+maxHWAddrLen], hw)

	copy(buf[offSName:offFile], m.ServerName)
	copy(buf[offFile:offMagic], m.BootFile)
	copy(buf[offMagic:], magicCookie[:])

	i := headerLen
	for _, opt := range m.Options {
		buf[i] = opt.Tag
		buf[i+1] = byte(len(opt.Data))
		copy(buf[i+2:], opt.Data)
		i += 2 + len(opt.Data)
	}
	buf[i] = tagEnd

	return buf
}

func putIP4(dst []byte, ip net.IP) {
	if v4 := ip.To4(); v4 != nil {
		copy(dst[:4], v4)
	}
}
