package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"arenadesk/pkg/platform/sentinel"
)

// DownstreamFunc simulates one downstream service for the in-memory channel.
// It receives the command and request payload and returns the raw reply
// body. Returning ok=false means the downstream never answers, which lets
// tests exercise the timeout path.
type DownstreamFunc func(command string, payload json.RawMessage) (reply json.RawMessage, ok bool)

// MemoryChannel is a loopback Channel for tests and local development. A
// configurable latency mimics a real round trip.
type MemoryChannel struct {
	service    ServiceName
	downstream DownstreamFunc
	latency    time.Duration

	mu      sync.RWMutex
	handler Handler
	closed  bool
}

// NewMemoryChannel builds a loopback channel answering with downstream. A
// nil downstream makes every Send fail as unavailable.
func NewMemoryChannel(service ServiceName, downstream DownstreamFunc) *MemoryChannel {
	return &MemoryChannel{service: service, downstream: downstream}
}

// WithLatency sets the simulated round-trip delay.
func (c *MemoryChannel) WithLatency(d time.Duration) *MemoryChannel {
	c.latency = d
	return c
}

func (c *MemoryChannel) Service() ServiceName { return c.service }

func (c *MemoryChannel) Send(_ context.Context, req Request) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed || c.downstream == nil {
		return fmt.Errorf("%w: channel to %s is closed", sentinel.ErrUnavailable, c.service)
	}

	go func() {
		if c.latency > 0 {
			time.Sleep(c.latency)
		}
		reply, ok := c.downstream(req.Command, req.Payload)
		if !ok {
			return
		}
		c.mu.RLock()
		h := c.handler
		closed := c.closed
		c.mu.RUnlock()
		if h == nil || closed {
			return
		}
		h(Reply{CorrelationID: req.CorrelationID, Payload: reply})
	}()
	return nil
}

func (c *MemoryChannel) OnReply(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
