// Package dhcpwire implements the DHCPv4 message format: the fixed
// BOOTP header, the magic cookie, and the TLV options region, per
// RFC 2131 and RFC 2132.
package dhcpwire

import (
	"fmt"
	"net"
)

// BOOTP op codes.
const (
	OpRequest byte = 1
	OpReply   byte = 2
)

// Hardware types. Ethernet is the only one this server hands leases to,
// but the codec carries any htype through untouched.
const (
	HTypeEthernet byte = 1
)

const (
	// headerLen is the size of the fixed fields plus the magic cookie.
	// Anything shorter cannot be a DHCP message.
	headerLen = 240

	// minPacketLen is the minimum legal BOOTP packet size; encoded
	// messages are zero-padded up to it.
	minPacketLen = 300

	// maxHWAddrLen is the size of the chaddr field.
	maxHWAddrLen = 16
)

// magicCookie marks the start of the options region.
var magicCookie = [4]byte{99, 130, 83, 99}

// MessageType is the value of the DHCP message type option (53).
type MessageType byte

const (
	TypeDiscover MessageType = 1
	TypeOffer    MessageType = 2
	TypeRequest  MessageType = 3
	TypeDecline  MessageType = 4
	TypeAck      MessageType = 5
	TypeNak      MessageType = 6
	TypeRelease  MessageType = 7
	TypeInform   MessageType = 8
)

func (t MessageType) String() string {
	switch t {
	case TypeDiscover:
		return "DISCOVER"
	case TypeOffer:
		return "OFFER"
	case TypeRequest:
		return "REQUEST"
	case TypeDecline:
		return "DECLINE"
	case TypeAck:
		return "ACK"
	case TypeNak:
		return "NAK"
	case TypeRelease:
		return "RELEASE"
	case TypeInform:
		return "INFORM"
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(t))
}

// Option is one TLV entry from the options region. Tags the server does
// not interpret are carried through as opaque payloads.
type Option struct {
	Tag  byte
	Data []byte
}

// Message is the parsed form of one DHCP packet. It is built by Decode,
// consumed read-only by the protocol handler, and discarded after one
// request/reply cycle.
type Message struct {
	Op    byte
	HType byte
	HLen  byte
	Hops  byte
	XID   uint32
	Secs  uint16
	Flags uint16

	ClientIP net.IP // ciaddr
	YourIP   net.IP // yiaddr
	ServerIP net.IP // siaddr
	RelayIP  net.IP // giaddr

	// HWAddr holds the HLen significant bytes of chaddr.
	HWAddr net.HardwareAddr

	// ServerName and BootFile are the sname and file fields with
	// trailing NULs stripped.
	ServerName string
	BootFile   string

	Options []Option
}

// broadcastFlag is the only defined bit in the flags field.
const broadcastFlag uint16 = 0x8000

// Broadcast reports whether the client asked for broadcast replies.
func (m *Message) Broadcast() bool {
	return m.Flags&broadcastFlag != 0
}

// NewReply builds the skeleton of a server reply to req: op, transaction
// id, flags, hardware address, and relay address are echoed, everything
// else starts zeroed.
func NewReply(req *Message) *Message {
	hw := make(net.HardwareAddr, len(req.HWAddr))
	copy(hw, req.HWAddr)
	return &Message{
		Op:       OpReply,
		HType:    req.HType,
		HLen:     req.HLen,
		XID:      req.XID,
		Flags:    req.Flags,
		ClientIP: net.IPv4zero,
		YourIP:   net.IPv4zero,
		ServerIP: net.IPv4zero,
		RelayIP:  cloneIP(req.RelayIP),
		HWAddr:   hw,
	}
}

func cloneIP(ip net.IP) net.IP {
	if ip4 := ip.To4(); ip4 != nil {
		dup := make(net.IP, 4)
		copy(dup, ip4)
		return dup
	}
	return net.IPv4zero
}
