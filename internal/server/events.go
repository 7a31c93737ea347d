package server

import (
	"context"
	"time"
)

// Lease lifecycle event types, published on the bus when one is
// configured so inventory and monitoring surfaces can follow address
// churn without polling the admin API.
const (
	EventOffered  = "offered"
	EventClaimed  = "claimed"
	EventReleased = "released"
	EventExpired  = "expired"
	EventDeclined = "declined"
)

// EventSubject is the subject lease events are published on.
const EventSubject = "leased.leases"

// Event describes one lease transition.
type Event struct {
	Type      string    `json:"type"`
	IP        string    `json:"ip"`
	ClientID  string    `json:"client_id"`
	Hostname  string    `json:"hostname,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Publisher is the outbound side of an event bus. Publishing is
// advisory: failures are logged and never affect protocol handling.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}
