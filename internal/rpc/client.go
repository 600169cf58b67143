package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"arenadesk/internal/rpc/metrics"
	"arenadesk/internal/rpc/transport"
	"arenadesk/pkg/platform/sentinel"
)

const defaultCallTimeout = 5 * time.Second

// Client is the single entry point for calling one downstream service. It
// wires the channel's inbound frames into the correlation registry at
// construction, so every reply finds its waiter.
type Client struct {
	service  transport.ServiceName
	channel  transport.Channel
	registry *Registry
	timeout  time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the default per-call deadline applied when the caller's
// context has none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMetrics attaches call metrics. A nil metrics value disables recording.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a client over channel and registers the reply handler.
func NewClient(channel transport.Channel, registry *Registry, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		service:  channel.Service(),
		channel:  channel,
		registry: registry,
		timeout:  defaultCallTimeout,
		log:      log,
		tracer:   otel.Tracer("arenadesk/rpc"),
	}
	for _, opt := range opts {
		opt(c)
	}
	channel.OnReply(func(rep transport.Reply) {
		registry.Resolve(rep.CorrelationID, rep.Payload)
	})
	return c
}

// Service returns the downstream service this client talks to.
func (c *Client) Service() transport.ServiceName { return c.service }

// Call sends one command and waits for its correlated reply.
//
// A downstream business failure is not a Go error: it arrives as
// Envelope{Success: false}. The error return is reserved for calls that
// never produced a usable envelope, wrapping sentinel.ErrUnavailable,
// sentinel.ErrTimeout or sentinel.ErrMalformedReply inside a
// *TransportError so callers can tell "downstream said no" from "could not
// reach downstream".
func (c *Client) Call(ctx context.Context, command string, payload any) (Envelope, error) {
	ctx, span := c.tracer.Start(ctx, "rpc.call",
		trace.WithAttributes(
			attribute.String("rpc.service", string(c.service)),
			attribute.String("rpc.command", command),
		))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload for %s/%s: %w", c.service, command, err)
	}

	id := uuid.NewString()
	waiter, err := c.registry.Register(id)
	if err != nil {
		// Duplicate uuid registration means broken bookkeeping, not a flaky
		// downstream. Surface it loudly.
		return Envelope{}, err
	}

	start := time.Now()
	c.metrics.CallStarted()
	defer c.metrics.CallFinished()

	if err := c.channel.Send(ctx, transport.Request{
		CorrelationID: id,
		Command:       command,
		Payload:       body,
	}); err != nil {
		c.registry.Discard(id)
		c.metrics.ObserveCall(string(c.service), command, "unavailable", time.Since(start))
		return Envelope{}, &TransportError{Service: c.service, Command: command, Err: err}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.await(ctx, waiter)
	if err != nil {
		outcome := "timeout"
		if !errors.Is(err, sentinel.ErrTimeout) {
			outcome = "unavailable"
		}
		c.metrics.ObserveCall(string(c.service), command, outcome, time.Since(start))
		return Envelope{}, &TransportError{Service: c.service, Command: command, Err: err}
	}

	env, err := DecodeEnvelope(raw)
	if err != nil {
		c.log.Error("malformed downstream reply",
			slog.String("service", string(c.service)),
			slog.String("command", command),
			slog.Any("err", err))
		c.metrics.ObserveCall(string(c.service), command, "malformed", time.Since(start))
		return Envelope{}, fmt.Errorf("%s/%s: %w", c.service, command, err)
	}

	outcome := "ok"
	if !env.Success {
		outcome = "rejected"
	}
	c.metrics.ObserveCall(string(c.service), command, outcome, time.Since(start))
	return env, nil
}

// await blocks until the correlated reply arrives or the deadline passes.
// On expiry it races Expire against a late Resolve; exactly one of them
// completes the pending call, so the follow-up receive always yields the
// winner's result.
func (c *Client) await(ctx context.Context, w *Waiter) (json.RawMessage, error) {
	select {
	case res := <-w.ch:
		return res.payload, res.err
	case <-ctx.Done():
		c.registry.Expire(w.id)
		res := <-w.ch
		return res.payload, res.err
	}
}
