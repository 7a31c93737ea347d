package dhcpwire

import (
	"errors"
	"net"
	"reflect"
	"testing"
	"time"
)

func testRequest() *Message {
	m := &Message{
		Op:       OpRequest,
		HType:    HTypeEthernet,
		HLen:     6,
		XID:      0x3903f326,
		Secs:     4,
		Flags:    broadcastFlag,
		ClientIP: net.IPv4zero,
		YourIP:   net.IPv4zero,
		ServerIP: net.IPv4zero,
		RelayIP:  net.IPv4zero,
		HWAddr:   net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01},
	}
	m.SetMessageType(TypeDiscover)
	m.SetOption(TagRequestedIP, []byte{10, 0, 0, 10})
	m.SetOption(TagParamRequestList, []byte{TagSubnetMask, TagRouter, TagDNS})
	m.SetOption(TagHostName, []byte("laptop"))
	return m
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	in := testRequest()
	out, err := Decode(in.Encode())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if out.Op != in.Op || out.HType != in.HType || out.HLen != in.HLen {
		t.Fatalf("header mismatch: got op=%d htype=%d hlen=%d", out.Op, out.HType, out.HLen)
	}
	if out.XID != in.XID {
		t.Fatalf("XID = %#x, want %#x", out.XID, in.XID)
	}
	if out.Secs != in.Secs || out.Flags != in.Flags {
		t.Fatalf("secs/flags = %d/%#x, want %d/%#x", out.Secs, out.Flags, in.Secs, in.Flags)
	}
	if !out.Broadcast() {
		t.Fatal("Broadcast() = false, want true")
	}
	if !reflect.DeepEqual(out.HWAddr, in.HWAddr) {
		t.Fatalf("HWAddr = %s, want %s", out.HWAddr, in.HWAddr)
	}
	if !reflect.DeepEqual(out.Options, in.Options) {
		t.Fatalf("Options = %v, want %v", out.Options, in.Options)
	}
}

func TestEncodePadsToMinimumSize(t *testing.T) {
	raw := testRequest().Encode()
	if len(raw) < 300 {
		t.Fatalf("Encode() produced %d bytes, want >= 300", len(raw))
	}
}

func TestDecodeTruncatedPrefixes(t *testing.T) {
	in := testRequest()
	raw := in.Encode()

	// End of the last encoded option; beyond it sits only the END
	// marker and padding.
	optionsEnd := headerLen
	for _, opt := range in.Options {
		optionsEnd += 2 + len(opt.Data)
	}

	for i := 0; i <= optionsEnd; i++ {
		if _, err := Decode(raw[:i]); err == nil {
			t.Fatalf("Decode(raw[:%d]) = nil error, want truncation", i)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	valid := testRequest().Encode()

	badMagic := make([]byte, len(valid))
	copy(badMagic, valid)
	badMagic[offMagic] = 0

	badOp := make([]byte, len(valid))
	copy(badOp, valid)
	badOp[offOp] = 9

	badHLen := make([]byte, len(valid))
	copy(badHLen, valid)
	badHLen[offHLen] = 42

	// Option 50 claims more payload than the buffer holds.
	overrun := make([]byte, headerLen+3)
	copy(overrun, valid[:headerLen])
	overrun[headerLen] = TagRequestedIP
	overrun[headerLen+1] = 200
	overrun[headerLen+2] = 10

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrTruncated},
		{name: "short header", data: valid[:120], want: ErrTruncated},
		{name: "bad magic", data: badMagic, want: ErrBadMagic},
		{name: "bad op", data: badOp, want: ErrBadOp},
		{name: "oversized hlen", data: badHLen, want: ErrBadHWAddr},
		{name: "option length overrun", data: overrun, want: ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodePreservesUnknownOptions(t *testing.T) {
	in := testRequest()
	in.SetOption(43, []byte{1, 2, 3, 4}) // vendor specific, not interpreted

	out, err := Decode(in.Encode())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	data, ok := out.option(43)
	if !ok || !reflect.DeepEqual(data, []byte{1, 2, 3, 4}) {
		t.Fatalf("option 43 = %v, %v; want payload preserved", data, ok)
	}
}

func TestDecodeSkipsPadding(t *testing.T) {
	in := testRequest()
	raw := in.Encode()

	// Rebuild the options region with PAD bytes between options.
	padded := make([]byte, 0, len(raw)+16)
	padded = append(padded, raw[:headerLen]...)
	for _, opt := range in.Options {
		padded = append(padded, tagPad, tagPad)
		padded = append(padded, opt.Tag, byte(len(opt.Data)))
		padded = append(padded, opt.Data...)
	}
	padded = append(padded, tagEnd)

	out, err := Decode(padded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(out.Options, in.Options) {
		t.Fatalf("Options = %v, want %v", out.Options, in.Options)
	}
}

func TestMessageTypeRequired(t *testing.T) {
	m := testRequest()
	m.Options = m.Options[1:] // drop the message type option

	raw := m.Encode()
	out, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, err := out.MessageType(); !errors.Is(err, ErrNoMessageType) {
		t.Fatalf("MessageType() error = %v, want ErrNoMessageType", err)
	}
}

func TestOptionGetters(t *testing.T) {
	m := testRequest()
	m.SetOption(TagClientID, []byte{1, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01})
	m.SetLeaseTime(90 * time.Minute)

	if ip, ok := m.RequestedIP(); !ok || !ip.Equal(net.IPv4(10, 0, 0, 10)) {
		t.Fatalf("RequestedIP() = %v, %v", ip, ok)
	}
	if _, ok := m.ServerID(); ok {
		t.Fatal("ServerID() present on message without option 54")
	}
	if d, ok := m.LeaseTime(); !ok || d != 90*time.Minute {
		t.Fatalf("LeaseTime() = %v, %v", d, ok)
	}
	if name, ok := m.HostName(); !ok || name != "laptop" {
		t.Fatalf("HostName() = %q, %v", name, ok)
	}
	if prl, ok := m.ParamRequestList(); !ok || len(prl) != 3 {
		t.Fatalf("ParamRequestList() = %v, %v", prl, ok)
	}
}

func TestClientID(t *testing.T) {
	m := testRequest()
	if got, want := m.ClientID(), "01:aa:bb:cc:dd:ee:01"; got != want {
		t.Fatalf("ClientID() = %q, want %q", got, want)
	}

	// An explicit client identifier option wins over chaddr.
	m.SetOption(TagClientID, []byte{0, 'h', 'o', 's', 't'})
	if got, want := m.ClientID(), "00:68:6f:73:74"; got != want {
		t.Fatalf("ClientID() = %q, want %q", got, want)
	}
}

func TestSetOptionReplacesInPlace(t *testing.T) {
	m := &Message{}
	m.SetMessageType(TypeOffer)
	m.SetServerID(net.IPv4(10, 0, 0, 1))
	m.SetMessageType(TypeAck)

	if len(m.Options) != 2 {
		t.Fatalf("len(Options) = %d, want 2", len(m.Options))
	}
	if m.Options[0].Tag != TagMessageType || m.Options[0].Data[0] != byte(TypeAck) {
		t.Fatalf("first option = %v, want replaced message type", m.Options[0])
	}
}

func TestNewReplyEchoesRequestFields(t *testing.T) {
	req := testRequest()
	req.RelayIP = net.IPv4(10, 0, 5, 1)

	reply := NewReply(req)
	if reply.Op != OpReply {
		t.Fatalf("Op = %d, want reply", reply.Op)
	}
	if reply.XID != req.XID || reply.Flags != req.Flags {
		t.Fatal("reply must echo xid and flags")
	}
	if !reply.RelayIP.Equal(req.RelayIP) {
		t.Fatalf("RelayIP = %v, want %v", reply.RelayIP, req.RelayIP)
	}
	if !reflect.DeepEqual(reply.HWAddr, req.HWAddr) {
		t.Fatal("reply must echo chaddr")
	}
}
