// Package bus publishes lease lifecycle events to NATS. Events are
// advisory: DHCP service never blocks on the broker, and a nil *Bus is
// a valid no-op publisher so the daemon runs without NATS configured.
package bus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
)

// Bus wraps a NATS connection for publishing lease events.
type Bus struct {
	conn *nats.Conn
}

// New creates a Bus connected to the provided NATS endpoint. The
// connection retries forever in the background, so a broker restart
// does not take the DHCP service down with it.
func New(url string, opts ...nats.Option) (*Bus, error) {
	opts = append([]nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	}, opts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Bus{conn: nc}, nil
}

// Close flushes pending publishes and shuts down the connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to the given subject.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return b.conn.Publish(subj, data)
}

// Subscribe invokes fn for each message on the given subject until ctx
// is cancelled. It exists for tooling that tails lease events; the
// daemon itself only publishes.
func (b *Bus) Subscribe(ctx context.Context, subj string, fn func(ctx context.Context, data []byte)) (*nats.Subscription, error) {
	if b == nil {
		return nil, errors.New("nil bus")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	sub, err := b.conn.Subscribe(subj, func(msg *nats.Msg) {
		fn(ctx, msg.Data)
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = sub.Drain()
	}()

	return sub, nil
}
