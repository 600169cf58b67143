package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"arenadesk/pkg/platform/sentinel"
)

// requestFrame is the wire shape for outbound commands. reply_to names the
// per-instance channel the downstream must publish its reply on.
type requestFrame struct {
	ID      string          `json:"id"`
	Command string          `json:"cmd"`
	ReplyTo string          `json:"reply_to"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// replyFrame is the wire shape for inbound replies.
type replyFrame struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// RedisChannel carries commands to one downstream service over Redis pub/sub.
// Requests go out on rpc.<service>.req; replies come back on a per-instance
// channel so concurrently running admin nodes never steal each other's
// replies. One subscriber goroutine pumps inbound frames to the handler.
type RedisChannel struct {
	service    ServiceName
	rdb        *redis.Client
	instanceID string
	pubsub     *redis.PubSub
	log        *slog.Logger

	mu      sync.RWMutex
	handler Handler
	closed  bool
}

// NewRedisChannel subscribes the reply channel and starts the read loop. The
// returned channel is ready to Send once this returns.
func NewRedisChannel(ctx context.Context, rdb *redis.Client, service ServiceName, log *slog.Logger) (*RedisChannel, error) {
	c := &RedisChannel{
		service:    service,
		rdb:        rdb,
		instanceID: uuid.NewString(),
		log:        log,
	}

	c.pubsub = rdb.Subscribe(ctx, c.replyChannel())
	// Wait for the subscription to be confirmed so replies to early sends are
	// not lost.
	if _, err := c.pubsub.Receive(ctx); err != nil {
		_ = c.pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", c.replyChannel(), err)
	}

	go c.readLoop()
	return c, nil
}

func (c *RedisChannel) Service() ServiceName { return c.service }

func (c *RedisChannel) requestChannel() string {
	return fmt.Sprintf("rpc.%s.req", c.service)
}

func (c *RedisChannel) replyChannel() string {
	return fmt.Sprintf("rpc.%s.reply.%s", c.service, c.instanceID)
}

// Send publishes one command frame. It fails synchronously with
// sentinel.ErrUnavailable when the connection is down or nothing is
// listening on the request channel; it never retries.
func (c *RedisChannel) Send(ctx context.Context, req Request) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return fmt.Errorf("%w: channel to %s is closed", sentinel.ErrUnavailable, c.service)
	}

	frame, err := json.Marshal(requestFrame{
		ID:      req.CorrelationID,
		Command: req.Command,
		ReplyTo: c.replyChannel(),
		Data:    req.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal request frame: %w", err)
	}

	receivers, err := c.rdb.Publish(ctx, c.requestChannel(), frame).Result()
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %v", sentinel.ErrUnavailable, c.service, err)
	}
	if receivers == 0 {
		return fmt.Errorf("%w: no subscriber on %s", sentinel.ErrUnavailable, c.requestChannel())
	}
	return nil
}

// OnReply registers the handler invoked once per inbound frame. Frames that
// arrive before a handler is set are dropped.
func (c *RedisChannel) OnReply(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *RedisChannel) readLoop() {
	for msg := range c.pubsub.Channel() {
		var frame replyFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			c.log.Warn("discarding undecodable reply frame",
				slog.String("service", string(c.service)),
				slog.Any("err", err))
			continue
		}
		if frame.ID == "" {
			c.log.Warn("discarding reply frame without correlation id",
				slog.String("service", string(c.service)))
			continue
		}

		c.mu.RLock()
		h := c.handler
		c.mu.RUnlock()
		if h == nil {
			c.log.Warn("dropping reply, no handler registered",
				slog.String("service", string(c.service)),
				slog.String("correlation_id", frame.ID))
			continue
		}
		h(Reply{CorrelationID: frame.ID, Payload: frame.Data})
	}
}

// Close tears down the subscription; the read loop exits when the pub/sub
// channel drains.
func (c *RedisChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.pubsub.Close()
}
