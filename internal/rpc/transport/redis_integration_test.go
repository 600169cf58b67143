//go:build integration

package transport_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"arenadesk/internal/rpc/transport"
	"arenadesk/pkg/platform/sentinel"
	"arenadesk/pkg/testutil/containers"
)

type RedisChannelSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisChannelSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisChannelSuite))
}

func (s *RedisChannelSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisChannelSuite) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runEchoService subscribes the request channel like a real downstream would
// and answers every command on its reply_to channel.
func (s *RedisChannelSuite) runEchoService(ctx context.Context, service string) {
	pubsub := s.redis.Client.Subscribe(ctx, "rpc."+service+".req")
	_, err := pubsub.Receive(ctx)
	s.Require().NoError(err)

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var req struct {
					ID      string          `json:"id"`
					Command string          `json:"cmd"`
					ReplyTo string          `json:"reply_to"`
					Data    json.RawMessage `json:"data"`
				}
				if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
					continue
				}
				reply, _ := json.Marshal(map[string]any{
					"id": req.ID,
					"data": map[string]any{
						"success": true,
						"data":    map[string]string{"echoed": req.Command},
					},
				})
				s.redis.Client.Publish(ctx, req.ReplyTo, reply)
			}
		}
	}()
}

func (s *RedisChannelSuite) TestRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.runEchoService(ctx, "identity")

	ch, err := transport.NewRedisChannel(ctx, s.redis.Client, transport.ServiceIdentity, s.logger())
	s.Require().NoError(err)
	defer ch.Close()

	got := make(chan transport.Reply, 1)
	ch.OnReply(func(rep transport.Reply) { got <- rep })

	err = ch.Send(ctx, transport.Request{
		CorrelationID: "it-1",
		Command:       "get_users",
		Payload:       json.RawMessage(`{"page":1}`),
	})
	s.Require().NoError(err)

	select {
	case rep := <-got:
		s.Equal("it-1", rep.CorrelationID)
		s.JSONEq(`{"success":true,"data":{"echoed":"get_users"}}`, string(rep.Payload))
	case <-time.After(5 * time.Second):
		s.Fail("no reply within deadline")
	}
}

func (s *RedisChannelSuite) TestSendWithoutSubscriberIsUnavailable() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Nothing subscribes rpc.investor.req in this test.
	ch, err := transport.NewRedisChannel(ctx, s.redis.Client, transport.ServiceInvestor, s.logger())
	s.Require().NoError(err)
	defer ch.Close()

	err = ch.Send(ctx, transport.Request{CorrelationID: "it-2", Command: "ping"})
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *RedisChannelSuite) TestRepliesAreInstanceScoped() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.runEchoService(ctx, "athlete")

	chA, err := transport.NewRedisChannel(ctx, s.redis.Client, transport.ServiceAthlete, s.logger())
	s.Require().NoError(err)
	defer chA.Close()

	chB, err := transport.NewRedisChannel(ctx, s.redis.Client, transport.ServiceAthlete, s.logger())
	s.Require().NoError(err)
	defer chB.Close()

	gotA := make(chan transport.Reply, 1)
	gotB := make(chan transport.Reply, 1)
	chA.OnReply(func(rep transport.Reply) { gotA <- rep })
	chB.OnReply(func(rep transport.Reply) { gotB <- rep })

	s.Require().NoError(chA.Send(ctx, transport.Request{CorrelationID: "from-a", Command: "list"}))

	select {
	case rep := <-gotA:
		s.Equal("from-a", rep.CorrelationID)
	case <-time.After(5 * time.Second):
		s.Fail("channel A never saw its reply")
	}

	select {
	case rep := <-gotB:
		s.Failf("cross-instance delivery", "channel B received %q", rep.CorrelationID)
	case <-time.After(200 * time.Millisecond):
	}
}
