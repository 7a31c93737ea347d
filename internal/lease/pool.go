package lease

import (
	"fmt"
	"net"
)

// Pool is the configured range of allocatable addresses, inclusive on
// both ends. Immutable once built.
type Pool struct {
	start net.IP
	end   net.IP
}

// NewPool validates and builds a pool from its inclusive bounds.
func NewPool(start, end net.IP) (Pool, error) {
	s := start.To4()
	e := end.To4()
	if s == nil || e == nil {
		return Pool{}, fmt.Errorf("pool bounds must be IPv4 addresses, got %v-%v", start, end)
	}
	if compareIP(s, e) > 0 {
		return Pool{}, fmt.Errorf("pool start %v is after end %v", s, e)
	}
	return Pool{start: cloneIP(s), end: cloneIP(e)}, nil
}

// Contains reports whether ip falls inside the pool bounds.
func (p Pool) Contains(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	return compareIP(p.start, v4) <= 0 && compareIP(v4, p.end) <= 0
}

// Size is the number of addresses in the pool.
func (p Pool) Size() int {
	n := 0
	for ip := cloneIP(p.start); ; ip = incrementIP(ip) {
		n++
		if compareIP(ip, p.end) >= 0 {
			return n
		}
	}
}

// each calls fn for every address in ascending order until fn returns
// false. Ascending order makes allocation deterministic: the lowest free
// address always wins.
func (p Pool) each(fn func(ip net.IP) bool) {
	for ip := cloneIP(p.start); ; ip = incrementIP(ip) {
		if !fn(ip) {
			return
		}
		if compareIP(ip, p.end) >= 0 {
			return
		}
	}
}

func (p Pool) String() string {
	return fmt.Sprintf("%s-%s", p.start, p.end)
}
