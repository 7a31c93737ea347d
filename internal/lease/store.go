// Package lease holds the authoritative mapping of pool addresses to
// clients. The store is not internally locked: the server loop owns a
// single guard and performs every decide-and-commit sequence under it,
// so two clients can never race for the same address.
package lease

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"time"
)

// State is the lifecycle position of one lease.
type State string

const (
	// StateOffered marks an address tentatively reserved by an OFFER
	// and not yet claimed.
	StateOffered State = "offered"

	// StateBound marks an address committed by an ACK.
	StateBound State = "bound"

	// StateDeclined marks an address a client reported as in use
	// elsewhere; it is held back until its expiry passes.
	StateDeclined State = "declined"
)

// declinedOwner prefixes the synthetic client id that parks declined
// addresses in the reverse map without colliding across addresses.
const declinedOwner = "declined/"

// Lease is one entry in the store.
type Lease struct {
	IP        net.IP
	ClientID  string
	Hostname  string
	State     State
	GrantedAt time.Time
	ExpiresAt time.Time
}

func (l Lease) expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// ErrPoolExhausted is returned when no free address remains.
var ErrPoolExhausted = errors.New("lease: address pool exhausted")

// ErrAddressInUse is returned when a client asks to commit an address a
// different client currently holds.
var ErrAddressInUse = errors.New("lease: address in use by another client")

// Store maps addresses to leases, with a reverse index from client id to
// address so both lookups are O(1). The two maps always agree: every
// forward entry has exactly one matching reverse entry.
type Store struct {
	pool      Pool
	offerHold time.Duration

	byIP     map[string]*Lease
	byClient map[string]*Lease
}

// NewStore builds an empty store over the pool. offerHold bounds how
// long an un-claimed OFFER reserves its address.
func NewStore(pool Pool, offerHold time.Duration) *Store {
	if offerHold <= 0 {
		offerHold = time.Minute
	}
	return &Store{
		pool:      pool,
		offerHold: offerHold,
		byIP:      make(map[string]*Lease),
		byClient:  make(map[string]*Lease),
	}
}

// Pool returns the address range the store allocates from.
func (s *Store) Pool() Pool { return s.pool }

// TryOffer picks a candidate address for clientID and reserves it
// tentatively, without committing any binding. Policy, in order: an
// existing un-expired lease wins; a free requested address inside the
// pool is honored; otherwise the lowest free address; otherwise
// ErrPoolExhausted. Expired entries are swept before deciding, so an
// elapsed lease can never block an allocation.
func (s *Store) TryOffer(now time.Time, clientID string, requested net.IP) (net.IP, error) {
	s.Sweep(now)

	if l, ok := s.byClient[clientID]; ok {
		if l.State == StateOffered {
			l.ExpiresAt = now.Add(s.offerHold)
		}
		return cloneIP(l.IP), nil
	}

	if requested != nil && s.pool.Contains(requested) {
		if _, taken := s.byIP[requested.To4().String()]; !taken {
			s.reserve(now, clientID, requested.To4())
			return cloneIP(requested.To4()), nil
		}
	}

	var candidate net.IP
	s.pool.each(func(ip net.IP) bool {
		if _, taken := s.byIP[ip.String()]; !taken {
			candidate = ip
			return false
		}
		return true
	})
	if candidate == nil {
		return nil, ErrPoolExhausted
	}
	s.reserve(now, clientID, candidate)
	return cloneIP(candidate), nil
}

func (s *Store) reserve(now time.Time, clientID string, ip net.IP) {
	l := &Lease{
		IP:        cloneIP(ip),
		ClientID:  clientID,
		State:     StateOffered,
		GrantedAt: now,
		ExpiresAt: now.Add(s.offerHold),
	}
	s.byIP[ip.String()] = l
	s.byClient[clientID] = l
}

// Commit binds ip to clientID for duration d, replacing any prior
// offered or bound entry the client held. Re-committing the same pair
// just refreshes the expiry, which is what lease renewal is.
func (s *Store) Commit(now time.Time, clientID string, ip net.IP, d time.Duration, hostname string) (Lease, error) {
	v4 := ip.To4()
	if v4 == nil || !s.pool.Contains(v4) {
		return Lease{}, fmt.Errorf("lease: %v outside pool %v", ip, s.pool)
	}

	key := v4.String()
	if cur, ok := s.byIP[key]; ok && cur.ClientID != clientID && !cur.expired(now) {
		return Lease{}, ErrAddressInUse
	}

	// Drop whatever the client held before, including an offer for a
	// different address.
	s.remove(s.byClient[clientID])
	s.remove(s.byIP[key])

	l := &Lease{
		IP:        cloneIP(v4),
		ClientID:  clientID,
		Hostname:  hostname,
		State:     StateBound,
		GrantedAt: now,
		ExpiresAt: now.Add(d),
	}
	s.byIP[key] = l
	s.byClient[clientID] = l
	return *l, nil
}

// Release frees the client's address immediately, bypassing expiry.
// It reports the freed lease and whether one existed.
func (s *Store) Release(clientID string) (Lease, bool) {
	l, ok := s.byClient[clientID]
	if !ok {
		return Lease{}, false
	}
	s.remove(l)
	return *l, true
}

// Decline parks ip until hold elapses, so an address a client reports as
// conflicted is not immediately re-offered. The declining client's own
// lease, if any, is freed.
func (s *Store) Decline(now time.Time, clientID string, ip net.IP, hold time.Duration) {
	s.remove(s.byClient[clientID])

	v4 := ip.To4()
	if v4 == nil || !s.pool.Contains(v4) {
		return
	}
	s.remove(s.byIP[v4.String()])

	l := &Lease{
		IP:        cloneIP(v4),
		ClientID:  declinedOwner + v4.String(),
		State:     StateDeclined,
		GrantedAt: now,
		ExpiresAt: now.Add(hold),
	}
	s.byIP[v4.String()] = l
	s.byClient[l.ClientID] = l
}

// Sweep frees every entry whose expiry has passed and returns them.
func (s *Store) Sweep(now time.Time) []Lease {
	var freed []Lease
	for _, l := range s.byIP {
		if l.expired(now) {
			freed = append(freed, *l)
			s.remove(l)
		}
	}
	return freed
}

func (s *Store) remove(l *Lease) {
	if l == nil {
		return
	}
	delete(s.byIP, l.IP.String())
	delete(s.byClient, l.ClientID)
}

// Lookup returns the lease on ip, if any.
func (s *Store) Lookup(ip net.IP) (Lease, bool) {
	v4 := ip.To4()
	if v4 == nil {
		return Lease{}, false
	}
	l, ok := s.byIP[v4.String()]
	if !ok {
		return Lease{}, false
	}
	return *l, true
}

// ByClient returns the lease held by clientID, if any.
func (s *Store) ByClient(clientID string) (Lease, bool) {
	l, ok := s.byClient[clientID]
	if !ok {
		return Lease{}, false
	}
	return *l, true
}

// Len is the number of live entries.
func (s *Store) Len() int { return len(s.byIP) }

// Snapshot copies every lease, ordered by address, for read-only
// inspection. Callers hold the same guard as the serve loop.
func (s *Store) Snapshot() []Lease {
	out := make([]Lease, 0, len(s.byIP))
	for _, l := range s.byIP {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		return compareIP(out[i].IP, out[j].IP) < 0
	})
	return out
}
