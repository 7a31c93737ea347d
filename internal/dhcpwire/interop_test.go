package dhcpwire

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

// Cross-checks the codec against an independent DHCPv4 implementation:
// what we encode it must parse, and what it encodes we must parse.

func TestEncodeReadableByReferenceParser(t *testing.T) {
	m := &Message{
		Op:       OpReply,
		HType:    HTypeEthernet,
		HLen:     6,
		XID:      0x1a2b3c4d,
		ClientIP: net.IPv4zero,
		YourIP:   net.IPv4(10, 0, 0, 10),
		ServerIP: net.IPv4zero,
		RelayIP:  net.IPv4zero,
		HWAddr:   net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01},
	}
	m.SetMessageType(TypeOffer)
	m.SetServerID(net.IPv4(10, 0, 0, 1))
	m.SetLeaseTime(time.Hour)
	m.SetSubnetMask(net.CIDRMask(24, 32))
	m.SetRouter(net.IPv4(10, 0, 0, 1))
	m.SetDNS([]net.IP{net.IPv4(10, 0, 0, 1), net.IPv4(1, 1, 1, 1)})

	ref, err := dhcpv4.FromBytes(m.Encode())
	if err != nil {
		t.Fatalf("reference parser rejected encoded message: %v", err)
	}

	if ref.OpCode != dhcpv4.OpcodeBootReply {
		t.Fatalf("OpCode = %v, want reply", ref.OpCode)
	}
	if ref.MessageType() != dhcpv4.MessageTypeOffer {
		t.Fatalf("MessageType = %v, want offer", ref.MessageType())
	}
	if !ref.YourIPAddr.Equal(net.IPv4(10, 0, 0, 10)) {
		t.Fatalf("YourIPAddr = %v", ref.YourIPAddr)
	}
	if !ref.ServerIdentifier().Equal(net.IPv4(10, 0, 0, 1)) {
		t.Fatalf("ServerIdentifier = %v", ref.ServerIdentifier())
	}
	if got := ref.IPAddressLeaseTime(0); got != time.Hour {
		t.Fatalf("IPAddressLeaseTime = %v, want 1h", got)
	}
	if got := ref.SubnetMask(); !bytes.Equal(got, net.CIDRMask(24, 32)) {
		t.Fatalf("SubnetMask = %v", got)
	}
	if got := ref.Router(); len(got) != 1 || !got[0].Equal(net.IPv4(10, 0, 0, 1)) {
		t.Fatalf("Router = %v", got)
	}
	if got := ref.DNS(); len(got) != 2 {
		t.Fatalf("DNS = %v, want two servers", got)
	}
}

func TestDecodeReferenceEncodedRequest(t *testing.T) {
	mac := net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	ref, err := dhcpv4.New(
		dhcpv4.WithHwAddr(mac),
		dhcpv4.WithMessageType(dhcpv4.MessageTypeRequest),
		dhcpv4.WithOption(dhcpv4.OptRequestedIPAddress(net.IPv4(10, 0, 0, 11))),
		dhcpv4.WithOption(dhcpv4.OptServerIdentifier(net.IPv4(10, 0, 0, 1))),
		dhcpv4.WithBroadcast(true),
	)
	if err != nil {
		t.Fatalf("build reference request: %v", err)
	}

	m, err := Decode(ref.ToBytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	mt, err := m.MessageType()
	if err != nil || mt != TypeRequest {
		t.Fatalf("MessageType() = %v, %v; want REQUEST", mt, err)
	}
	if !bytes.Equal(m.HWAddr, mac) {
		t.Fatalf("HWAddr = %v, want %v", m.HWAddr, mac)
	}
	if !m.Broadcast() {
		t.Fatal("Broadcast() = false, want true")
	}
	if ip, ok := m.RequestedIP(); !ok || !ip.Equal(net.IPv4(10, 0, 0, 11)) {
		t.Fatalf("RequestedIP() = %v, %v", ip, ok)
	}
	if ip, ok := m.ServerID(); !ok || !ip.Equal(net.IPv4(10, 0, 0, 1)) {
		t.Fatalf("ServerID() = %v, %v", ip, ok)
	}
}
