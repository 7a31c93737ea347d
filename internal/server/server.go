// Package server owns the DHCP socket and the shared lease store. The
// receive loop is the only concurrency boundary: every decide-and-commit
// sequence for one message runs under one mutex acquisition, so no two
// clients can race for the same address and no reader ever observes the
// store mid-mutation.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"leased/internal/config"
	"leased/internal/dhcpwire"
	"leased/internal/lease"
)

const (
	serverPort = 67
	clientPort = 68

	// maxDatagram comfortably holds any DHCP message we serve.
	maxDatagram = 1500

	publishTimeout = 2 * time.Second
)

// Options carries the optional collaborators of a Server.
type Options struct {
	// Publisher receives lease events; nil disables publishing.
	Publisher Publisher

	// Registerer receives the server metrics; nil means the default
	// Prometheus registry.
	Registerer prometheus.Registerer
}

// Server runs the DHCP receive loop.
type Server struct {
	cfg     config.Config
	store   *lease.Store
	handler *Handler
	logger  *log.Logger
	bus     Publisher
	metrics *metrics

	// mu guards the lease store. Handle, sweep, and the admin read path
	// all take it; nothing touches the store without it.
	mu   sync.Mutex
	conn net.PacketConn
}

// New wires the server over the shared store.
func New(cfg config.Config, store *lease.Store, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		bus:    opts.Publisher,
	}
	s.metrics = newMetrics(reg, func() float64 {
		s.mu.Lock()
		defer s.mu.Unlock()
		return float64(store.Len())
	})
	s.metrics.poolSize.Set(float64(store.Pool().Size()))
	s.handler = NewHandler(cfg, store, logger, s.metrics)
	return s
}

// Run binds the socket and serves until ctx is cancelled. Bind failure
// is fatal; everything after that degrades to drop-and-continue.
func (s *Server) Run(ctx context.Context, ready *atomic.Bool) error {
	lc := net.ListenConfig{Control: controlSocket(s.cfg.Interface)}
	conn, err := lc.ListenPacket(ctx, "udp4", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.Listen, err)
	}
	s.conn = conn

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go s.sweepLoop(ctx)

	ready.Store(true)
	s.logger.Printf("INFO dhcp listening on %s, pool %s, lease %s", s.cfg.Listen, s.store.Pool(), s.cfg.LeaseTime)

	buf := make([]byte, maxDatagram)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Printf("WARN read: %v", err)
			continue
		}
		s.serveDatagram(ctx, time.Now(), buf[:n], src)
	}
}

func (s *Server) serveDatagram(ctx context.Context, now time.Time, data []byte, src net.Addr) {
	s.metrics.received.Inc()

	req, err := dhcpwire.Decode(data)
	if err != nil {
		// Corrupt or adversarial input is expected on a broadcast
		// medium; the client retransmits.
		s.metrics.dropped.WithLabelValues("decode").Inc()
		s.logger.Printf("WARN drop %d bytes from %s: %v", len(data), src, err)
		return
	}

	s.mu.Lock()
	reply, events := s.handler.Handle(now, req)
	s.mu.Unlock()

	s.publish(ctx, events)
	if reply == nil {
		return
	}

	msgType, err := reply.MessageType()
	if err != nil {
		s.logger.Printf("ERROR reply without message type, dropping")
		return
	}

	dst := replyDest(req, src, msgType)
	if _, err := s.conn.WriteTo(reply.Encode(), dst); err != nil {
		// A single failed send must not halt the loop.
		s.logger.Printf("ERROR send %s to %s: %v", msgType, dst, err)
		return
	}
	s.metrics.replies.WithLabelValues(msgType.String()).Inc()
}

// replyDest places the reply per RFC 2131 §4.1: relays get it on the
// server port, addressable clients unicast on the client port, everyone
// else broadcast. Without ARP injection an un-addressable unicast target
// falls back to broadcast.
func replyDest(req *dhcpwire.Message, src net.Addr, msgType dhcpwire.MessageType) *net.UDPAddr {
	broadcast := &net.UDPAddr{IP: net.IPv4bcast, Port: clientPort}

	if v4 := req.RelayIP.To4(); v4 != nil && !v4.Equal(net.IPv4zero) {
		return &net.UDPAddr{IP: v4, Port: serverPort}
	}
	if msgType == dhcpwire.TypeNak {
		return broadcast
	}
	if v4 := req.ClientIP.To4(); v4 != nil && !v4.Equal(net.IPv4zero) {
		return &net.UDPAddr{IP: v4, Port: clientPort}
	}
	if req.Broadcast() {
		return broadcast
	}
	if udp, ok := src.(*net.UDPAddr); ok && udp.IP != nil && !udp.IP.IsUnspecified() {
		return &net.UDPAddr{IP: udp.IP, Port: clientPort}
	}
	return broadcast
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

func (s *Server) sweep(ctx context.Context, now time.Time) {
	s.mu.Lock()
	freed := s.store.Sweep(now)
	s.mu.Unlock()

	if len(freed) == 0 {
		return
	}
	s.metrics.swept.Add(float64(len(freed)))

	events := make([]Event, 0, len(freed))
	for _, l := range freed {
		s.logger.Printf("INFO lease %s for %s expired", l.IP, l.ClientID)
		events = append(events, Event{Type: EventExpired, IP: l.IP.String(), ClientID: l.ClientID, Hostname: l.Hostname})
	}
	s.publish(ctx, events)
}

func (s *Server) publish(ctx context.Context, events []Event) {
	if s.bus == nil || len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	for _, ev := range events {
		if err := s.bus.Publish(ctx, EventSubject, ev); err != nil {
			s.logger.Printf("WARN publish %s event for %s: %v", ev.Type, ev.IP, err)
		}
	}
}

// SnapshotLeases copies the lease table for the admin surface. It takes
// the same guard as the serve loop, so it is safe concurrently with it.
func (s *Server) SnapshotLeases() []lease.Lease {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// LookupLease returns the lease on ip, if any.
func (s *Server) LookupLease(ip net.IP) (lease.Lease, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Lookup(ip)
}
