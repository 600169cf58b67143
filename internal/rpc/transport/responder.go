package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CommandFunc handles one inbound command and returns the raw reply body.
// A nil return suppresses the reply.
type CommandFunc func(ctx context.Context, payload json.RawMessage) json.RawMessage

// Responder is the inbound half of the rpc wire: it subscribes to this
// process's own request channel and answers commands, the mirror image of
// what RedisChannel does toward downstreams. Handlers are registered before
// Run; replies go to whatever reply_to the request frame names.
type Responder struct {
	name string
	rdb  *redis.Client
	log  *slog.Logger

	mu       sync.RWMutex
	handlers map[string]CommandFunc
}

// NewResponder builds a responder answering as the given service name.
func NewResponder(rdb *redis.Client, name string, log *slog.Logger) *Responder {
	return &Responder{
		name:     name,
		rdb:      rdb,
		log:      log,
		handlers: make(map[string]CommandFunc),
	}
}

// Handle registers the handler for one command.
func (r *Responder) Handle(command string, fn CommandFunc) {
	r.mu.Lock()
	r.handlers[command] = fn
	r.mu.Unlock()
}

// Run subscribes the request channel and dispatches frames until ctx is
// cancelled. Each frame is handled on its own goroutine so a slow command
// cannot block the rest of the stream.
func (r *Responder) Run(ctx context.Context) error {
	channel := fmt.Sprintf("rpc.%s.req", r.name)
	pubsub := r.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	defer pubsub.Close()

	r.log.Info("rpc responder listening", slog.String("channel", channel))

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			go r.dispatch(ctx, msg.Payload)
		}
	}
}

func (r *Responder) dispatch(ctx context.Context, raw string) {
	var frame requestFrame
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		r.log.Warn("discarding undecodable request frame", slog.Any("err", err))
		return
	}
	if frame.ID == "" || frame.ReplyTo == "" {
		r.log.Warn("discarding request frame without id or reply_to",
			slog.String("cmd", frame.Command))
		return
	}

	r.mu.RLock()
	fn := r.handlers[frame.Command]
	r.mu.RUnlock()
	if fn == nil {
		r.log.Warn("no handler for command",
			slog.String("cmd", frame.Command),
			slog.String("correlation_id", frame.ID))
		return
	}

	body := fn(ctx, frame.Data)
	if body == nil {
		return
	}

	reply, err := json.Marshal(replyFrame{ID: frame.ID, Data: body})
	if err != nil {
		r.log.Warn("marshal reply frame", slog.Any("err", err))
		return
	}
	if err := r.rdb.Publish(ctx, frame.ReplyTo, reply).Err(); err != nil {
		r.log.Warn("publish reply failed",
			slog.String("reply_to", frame.ReplyTo),
			slog.Any("err", err))
	}
}
