package server

import (
	"log"
	"net"
	"time"

	"leased/internal/config"
	"leased/internal/dhcpwire"
	"leased/internal/lease"
)

// Handler is the per-message protocol state machine. It keeps no state
// of its own between calls; everything persistent lives in the lease
// store, so one call is a pure function of (message, store, clock).
// The caller holds the store guard for the duration of Handle.
type Handler struct {
	cfg     config.Config
	store   *lease.Store
	logger  *log.Logger
	metrics *metrics
}

// NewHandler builds the state machine over the shared store.
func NewHandler(cfg config.Config, store *lease.Store, logger *log.Logger, m *metrics) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{cfg: cfg, store: store, logger: logger, metrics: m}
}

// Handle consumes one inbound message and produces zero or one reply
// plus the lease events the decision caused. A nil reply means silence,
// which is a legitimate protocol outcome, not an error.
func (h *Handler) Handle(now time.Time, req *dhcpwire.Message) (*dhcpwire.Message, []Event) {
	if req.Op != dhcpwire.OpRequest {
		h.metrics.dropped.WithLabelValues("not_request").Inc()
		return nil, nil
	}

	msgType, err := req.MessageType()
	if err != nil {
		h.metrics.dropped.WithLabelValues("no_message_type").Inc()
		h.logger.Printf("WARN drop from %s: %v", req.ClientID(), err)
		return nil, nil
	}

	switch msgType {
	case dhcpwire.TypeDiscover:
		return h.discover(now, req)
	case dhcpwire.TypeRequest:
		return h.request(now, req)
	case dhcpwire.TypeRelease:
		return h.release(req)
	case dhcpwire.TypeDecline:
		return h.decline(now, req)
	case dhcpwire.TypeInform:
		return h.inform(req)
	}

	// Broadcast media carry traffic that is not for us; ignore it.
	h.metrics.dropped.WithLabelValues("unhandled_type").Inc()
	h.logger.Printf("INFO ignore %s from %s", msgType, req.ClientID())
	return nil, nil
}

func (h *Handler) discover(now time.Time, req *dhcpwire.Message) (*dhcpwire.Message, []Event) {
	clientID := req.ClientID()
	requested, _ := req.RequestedIP()

	ip, err := h.store.TryOffer(now, clientID, requested)
	if err != nil {
		// A server may legitimately stay silent on DISCOVER when it has
		// nothing to offer.
		h.metrics.exhausted.Inc()
		h.logger.Printf("WARN no address to offer %s: %v", clientID, err)
		return nil, nil
	}

	ttl := h.leaseDuration(req)
	reply := h.newReply(req, dhcpwire.TypeOffer)
	reply.YourIP = ip
	h.setLeaseOptions(reply, ttl)
	h.setNetOptions(reply)

	h.logger.Printf("INFO OFFER %s to %s", ip, clientID)
	return reply, []Event{{Type: EventOffered, IP: ip.String(), ClientID: clientID}}
}

func (h *Handler) request(now time.Time, req *dhcpwire.Message) (*dhcpwire.Message, []Event) {
	clientID := req.ClientID()

	// A REQUEST naming another server means the client chose a
	// different offer; stay out of the exchange.
	if sid, ok := req.ServerID(); ok && !sid.Equal(h.cfg.ServerIP.To4()) {
		h.logger.Printf("INFO REQUEST from %s is for server %s, ignoring", clientID, sid)
		return nil, nil
	}
	selecting := false
	if _, ok := req.ServerID(); ok {
		selecting = true
	}

	// The target address comes from option 50 when selecting or
	// rebooting, and from ciaddr when renewing in place.
	target, hasOption := req.RequestedIP()
	if !hasOption {
		target = req.ClientIP
	}
	if target == nil || target.To4() == nil || target.Equal(net.IPv4zero) {
		h.logger.Printf("WARN REQUEST from %s names no address", clientID)
		return h.nak(req), nil
	}
	if !h.store.Pool().Contains(target) {
		h.logger.Printf("WARN REQUEST from %s for %s outside pool", clientID, target)
		return h.nak(req), nil
	}

	// Renewal must prove ownership: a client claiming an address the
	// store does not attribute to it gets a NAK, not a new binding.
	if !selecting {
		cur, ok := h.store.Lookup(target)
		if !ok || cur.ClientID != clientID {
			h.logger.Printf("WARN %s claims %s it does not hold", clientID, target)
			return h.nak(req), nil
		}
	}

	hostname, _ := req.HostName()
	ttl := h.leaseDuration(req)
	l, err := h.store.Commit(now, clientID, target, ttl, hostname)
	if err != nil {
		h.logger.Printf("WARN cannot bind %s to %s: %v", target, clientID, err)
		return h.nak(req), nil
	}

	reply := h.newReply(req, dhcpwire.TypeAck)
	reply.YourIP = l.IP
	reply.ClientIP = cloneOrZero(req.ClientIP)
	h.setLeaseOptions(reply, ttl)
	h.setNetOptions(reply)

	h.logger.Printf("INFO ACK %s to %s (%q) until %s", l.IP, clientID, hostname, l.ExpiresAt.Format(time.RFC3339))
	ev := Event{Type: EventClaimed, IP: l.IP.String(), ClientID: clientID, Hostname: hostname, ExpiresAt: l.ExpiresAt}
	return reply, []Event{ev}
}

func (h *Handler) release(req *dhcpwire.Message) (*dhcpwire.Message, []Event) {
	clientID := req.ClientID()
	freed, ok := h.store.Release(clientID)
	if !ok {
		h.logger.Printf("INFO RELEASE from %s with no lease", clientID)
		return nil, nil
	}

	// Releases are not acknowledged.
	h.logger.Printf("INFO RELEASE %s by %s", freed.IP, clientID)
	return nil, []Event{{Type: EventReleased, IP: freed.IP.String(), ClientID: clientID}}
}

func (h *Handler) decline(now time.Time, req *dhcpwire.Message) (*dhcpwire.Message, []Event) {
	clientID := req.ClientID()
	addr, ok := req.RequestedIP()
	if !ok {
		addr = req.ClientIP
	}

	// The client found the address in use elsewhere. Hold it back so the
	// conflict is not immediately re-offered to the next DISCOVER.
	h.store.Decline(now, clientID, addr, h.cfg.DeclineHold)
	h.logger.Printf("WARN DECLINE of %s by %s", addr, clientID)
	return nil, []Event{{Type: EventDeclined, IP: addr.String(), ClientID: clientID}}
}

func (h *Handler) inform(req *dhcpwire.Message) (*dhcpwire.Message, []Event) {
	// Configuration only: no lease, no lease-time option, address left
	// to whatever the client already has.
	reply := h.newReply(req, dhcpwire.TypeAck)
	reply.ClientIP = cloneOrZero(req.ClientIP)
	h.setNetOptions(reply)

	h.logger.Printf("INFO INFORM ACK to %s", req.ClientID())
	return reply, nil
}

func (h *Handler) newReply(req *dhcpwire.Message, t dhcpwire.MessageType) *dhcpwire.Message {
	reply := dhcpwire.NewReply(req)
	reply.SetMessageType(t)
	reply.SetServerID(h.cfg.ServerIP)
	return reply
}

// nak carries only the message type and server identifier.
func (h *Handler) nak(req *dhcpwire.Message) *dhcpwire.Message {
	return h.newReply(req, dhcpwire.TypeNak)
}

func (h *Handler) setLeaseOptions(m *dhcpwire.Message, ttl time.Duration) {
	m.SetLeaseTime(ttl)
	m.SetRenewalTime(ttl / 2)
	m.SetRebindingTime(ttl * 7 / 8)
}

func (h *Handler) setNetOptions(m *dhcpwire.Message) {
	m.SetSubnetMask(h.cfg.SubnetMask)
	m.SetRouter(h.cfg.Router)
	if len(h.cfg.DNS) > 0 {
		m.SetDNS(h.cfg.DNS)
	}
	if h.cfg.DomainName != "" {
		m.SetDomainName(h.cfg.DomainName)
	}
}

// leaseDuration honors a requested lease time up to the configured
// maximum, defaulting to the configured lease time.
func (h *Handler) leaseDuration(req *dhcpwire.Message) time.Duration {
	want, ok := req.LeaseTime()
	if !ok || want <= 0 {
		return h.cfg.LeaseTime
	}
	if want > h.cfg.MaxLeaseTime {
		return h.cfg.MaxLeaseTime
	}
	return want
}

func cloneOrZero(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		dup := make(net.IP, 4)
		copy(dup, v4)
		return dup
	}
	return net.IPv4zero
}
