package dhcpwire

import (
	"encoding/binary"
	"errors"
	"net"
	"time"
)

// Option tags this server interprets (RFC 2132). Everything else is
// treated as opaque and passed through.
const (
	tagPad byte = 0
	tagEnd byte = 255

	TagSubnetMask       byte = 1
	TagRouter           byte = 3
	TagDNS              byte = 6
	TagHostName         byte = 12
	TagDomainName       byte = 15
	TagRequestedIP      byte = 50
	TagLeaseTime        byte = 51
	TagMessageType      byte = 53
	TagServerID         byte = 54
	TagParamRequestList byte = 55
	TagMaxMessageSize   byte = 57
	TagRenewalTime      byte = 58
	TagRebindingTime    byte = 59
	TagVendorClass      byte = 60
	TagClientID         byte = 61
)

// ErrNoMessageType is returned when a message carries no message type
// option. Every DHCP client message must have one; its absence is a
// protocol error, not a decode error.
var ErrNoMessageType = errors.New("dhcpwire: no message type option")

// Option lookups return (value, false) when the tag is absent; options
// are optional by design and absence is not an error.

func (m *Message) option(tag byte) ([]byte, bool) {
	for _, opt := range m.Options {
		if opt.Tag == tag {
			return opt.Data, true
		}
	}
	return nil, false
}

// MessageType returns the DHCP message type, or ErrNoMessageType if the
// option is missing or malformed.
func (m *Message) MessageType() (MessageType, error) {
	data, ok := m.option(TagMessageType)
	if !ok || len(data) != 1 {
		return 0, ErrNoMessageType
	}
	return MessageType(data[0]), nil
}

// RequestedIP returns the requested IP address option (50).
func (m *Message) RequestedIP() (net.IP, bool) {
	return m.ipOption(TagRequestedIP)
}

// ServerID returns the server identifier option (54).
func (m *Message) ServerID() (net.IP, bool) {
	return m.ipOption(TagServerID)
}

func (m *Message) ipOption(tag byte) (net.IP, bool) {
	data, ok := m.option(tag)
	if !ok || len(data) != 4 {
		return nil, false
	}
	ip := make(net.IP, 4)
	copy(ip, data)
	return ip, true
}

// LeaseTime returns the requested lease duration option (51).
func (m *Message) LeaseTime() (time.Duration, bool) {
	data, ok := m.option(TagLeaseTime)
	if !ok || len(data) != 4 {
		return 0, false
	}
	return time.Duration(binary.BigEndian.Uint32(data)) * time.Second, true
}

// MaxMessageSize returns the maximum DHCP message size option (57).
func (m *Message) MaxMessageSize() (uint16, bool) {
	data, ok := m.option(TagMaxMessageSize)
	if !ok || len(data) != 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(data), true
}

// ParamRequestList returns the parameter request list option (55).
func (m *Message) ParamRequestList() ([]byte, bool) {
	return m.option(TagParamRequestList)
}

// HostName returns the host name option (12).
func (m *Message) HostName() (string, bool) {
	data, ok := m.option(TagHostName)
	if !ok {
		return "", false
	}
	return nulTrimmed(data), true
}

// VendorClass returns the vendor class identifier option (60).
func (m *Message) VendorClass() (string, bool) {
	data, ok := m.option(TagVendorClass)
	if !ok {
		return "", false
	}
	return string(data), true
}

// ClientID is the key correlating a client across messages: the client
// identifier option (61) when present, otherwise htype plus the hardware
// address. Rendered as colon-separated hex so it can key a map and
// appear in logs unambiguously.
func (m *Message) ClientID() string {
	if data, ok := m.option(TagClientID); ok && len(data) > 0 {
		return net.HardwareAddr(data).String()
	}
	id := make([]byte, 0, 1+len(m.HWAddr))
	id = append(id, m.HType)
	id = append(id, m.HWAddr...)
	return net.HardwareAddr(id).String()
}

// SetOption replaces an existing option with the same tag in place, or
// appends when the tag is not yet present. Stored order is the order of
// first insertion, which keeps encoding deterministic.
func (m *Message) SetOption(tag byte, data []byte) {
	for i := range m.Options {
		if m.Options[i].Tag == tag {
			m.Options[i].Data = data
			return
		}
	}
	m.Options = append(m.Options, Option{Tag: tag, Data: data})
}

// SetMessageType sets the message type option (53).
func (m *Message) SetMessageType(t MessageType) {
	m.SetOption(TagMessageType, []byte{byte(t)})
}

// SetServerID sets the server identifier option (54).
func (m *Message) SetServerID(ip net.IP) {
	m.SetOption(TagServerID, ip.To4())
}

// SetLeaseTime sets the lease duration option (51).
func (m *Message) SetLeaseTime(d time.Duration) {
	m.SetOption(TagLeaseTime, secsBytes(d))
}

// SetRenewalTime sets the T1 renewal time option (58).
func (m *Message) SetRenewalTime(d time.Duration) {
	m.SetOption(TagRenewalTime, secsBytes(d))
}

// SetRebindingTime sets the T2 rebinding time option (59).
func (m *Message) SetRebindingTime(d time.Duration) {
	m.SetOption(TagRebindingTime, secsBytes(d))
}

// SetSubnetMask sets the subnet mask option (1).
func (m *Message) SetSubnetMask(mask net.IPMask) {
	m.SetOption(TagSubnetMask, mask)
}

// SetRouter sets the router option (3).
func (m *Message) SetRouter(ip net.IP) {
	m.SetOption(TagRouter, ip.To4())
}

// SetDNS sets the domain name server option (6).
func (m *Message) SetDNS(servers []net.IP) {
	data := make([]byte, 0, 4*len(servers))
	for _, s := range servers {
		if v4 := s.To4(); v4 != nil {
			data = append(data, v4...)
		}
	}
	m.SetOption(TagDNS, data)
}

// SetDomainName sets the domain name option (15).
func (m *Message) SetDomainName(name string) {
	m.SetOption(TagDomainName, []byte(name))
}

func secsBytes(d time.Duration) []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, uint32(d/time.Second))
	return data
}
