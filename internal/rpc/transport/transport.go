// Package transport provides long-lived channels to the downstream services
// the admin backend orchestrates. A channel carries tagged commands one way
// and correlated replies the other; matching replies to calls is the
// correlation registry's job, not the channel's.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"arenadesk/pkg/platform/sentinel"
)

// ServiceName identifies one downstream service. Each name maps to exactly
// one Channel, created once at process start and reused for the process
// lifetime.
type ServiceName string

const (
	ServiceIdentity ServiceName = "identity"
	ServiceAthlete  ServiceName = "athlete"
	ServiceInvestor ServiceName = "investor"
)

// Request is one outbound command tagged with its correlation id.
type Request struct {
	CorrelationID string
	Command       string
	Payload       json.RawMessage
}

// Reply is one inbound frame off the wire. Payload is the raw reply body;
// decoding into an envelope happens upstream.
type Reply struct {
	CorrelationID string
	Payload       json.RawMessage
}

// Handler consumes inbound replies. It is invoked once per inbound frame and
// must not block; the usual handler forwards to the correlation registry.
type Handler func(Reply)

// Channel is a long-lived, bidirectional connection to one named downstream
// service. Send enqueues a command and returns without waiting for the
// reply. A channel performs no retries; retry policy belongs to callers.
type Channel interface {
	Service() ServiceName
	Send(ctx context.Context, req Request) error
	OnReply(h Handler)
	Close() error
}

// Map holds exactly one Channel per downstream service. It is built once in
// main and injected wherever a client needs a channel, so there is no hidden
// global connection state.
type Map map[ServiceName]Channel

// Get returns the channel for a service. An unknown name fails the same way
// a down connection does: the send cannot be accepted.
func (m Map) Get(name ServiceName) (Channel, error) {
	ch, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: no channel for service %q", sentinel.ErrUnavailable, name)
	}
	return ch, nil
}

// Close closes every channel in the map, keeping the first error.
func (m Map) Close() error {
	var first error
	for _, ch := range m {
		if err := ch.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
