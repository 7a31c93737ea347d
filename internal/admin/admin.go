// Package admin exposes the read-only monitoring surface: lease table
// queries, health probes, and metrics. It never writes to the lease
// store; reads go through the server's snapshot methods so they share
// the serve loop's exclusion discipline.
package admin

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leased/internal/lease"
)

// LeaseReader is the read path into the lease table.
type LeaseReader interface {
	SnapshotLeases() []lease.Lease
	LookupLease(ip net.IP) (lease.Lease, bool)
}

// API serves the admin endpoints.
type API struct {
	leases LeaseReader
	ready  *atomic.Bool
}

// New builds the admin API over the given lease reader.
func New(leases LeaseReader, ready *atomic.Bool) (*API, error) {
	if leases == nil {
		return nil, errors.New("nil lease reader")
	}
	return &API{leases: leases, ready: ready}, nil
}

// Routes constructs the chi router containing all admin endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", a.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/leases", a.handleLeases)
		r.Get("/leases/{ip}", a.handleLease)
	})

	return r
}

func (a *API) handleReady(w http.ResponseWriter, _ *http.Request) {
	if a.ready != nil && !a.ready.Load() {
		http.Error(w, "dhcp listener not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// leaseView is the wire shape of one lease table entry.
type leaseView struct {
	IP        string    `json:"ip"`
	ClientID  string    `json:"client_id"`
	Hostname  string    `json:"hostname,omitempty"`
	State     string    `json:"state"`
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func viewOf(l lease.Lease) leaseView {
	return leaseView{
		IP:        l.IP.String(),
		ClientID:  l.ClientID,
		Hostname:  l.Hostname,
		State:     string(l.State),
		GrantedAt: l.GrantedAt,
		ExpiresAt: l.ExpiresAt,
	}
}

func (a *API) handleLeases(w http.ResponseWriter, _ *http.Request) {
	snapshot := a.leases.SnapshotLeases()
	views := make([]leaseView, 0, len(snapshot))
	for _, l := range snapshot {
		views = append(views, viewOf(l))
	}
	respondJSON(w, http.StatusOK, map[string]any{"leases": views})
}

func (a *API) handleLease(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "ip")
	ip := net.ParseIP(raw)
	if ip == nil || ip.To4() == nil {
		respondError(w, http.StatusBadRequest, errors.New("not an IPv4 address"))
		return
	}

	l, ok := a.leases.LookupLease(ip)
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("no lease"))
		return
	}
	respondJSON(w, http.StatusOK, viewOf(l))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}
