package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenadesk/internal/rpc"
	"arenadesk/internal/rpc/transport"
	"arenadesk/pkg/platform/sentinel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okEnvelope(data string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"success":true,"data":%s}`, data))
}

func TestClient_CallSuccess(t *testing.T) {
	downstream := func(command string, payload json.RawMessage) (json.RawMessage, bool) {
		assert.Equal(t, "get_users", command)
		return okEnvelope(`{"total":12}`), true
	}
	ch := transport.NewMemoryChannel(transport.ServiceIdentity, downstream)
	reg := rpc.NewRegistry(discardLogger(), 0)
	client := rpc.NewClient(ch, reg, discardLogger())

	env, err := client.Call(context.Background(), "get_users", map[string]int{"page": 1})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"total":12}`, string(env.Data))
	assert.Equal(t, 0, reg.Len())
}

func TestClient_CallRejectionIsNotAnError(t *testing.T) {
	downstream := func(string, json.RawMessage) (json.RawMessage, bool) {
		return json.RawMessage(`{"success":false,"message":"user not found"}`), true
	}
	ch := transport.NewMemoryChannel(transport.ServiceIdentity, downstream)
	reg := rpc.NewRegistry(discardLogger(), 0)
	client := rpc.NewClient(ch, reg, discardLogger())

	env, err := client.Call(context.Background(), "get_user", map[string]int{"id": 99})
	require.NoError(t, err)
	assert.False(t, env.Success)
	assert.Equal(t, "user not found", env.Message)
}

func TestClient_CallTimesOutInsteadOfHanging(t *testing.T) {
	// Downstream swallows the request and never replies.
	downstream := func(string, json.RawMessage) (json.RawMessage, bool) {
		return nil, false
	}
	ch := transport.NewMemoryChannel(transport.ServiceIdentity, downstream)
	reg := rpc.NewRegistry(discardLogger(), 0)
	client := rpc.NewClient(ch, reg, discardLogger(), rpc.WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.Call(context.Background(), "get_users", map[string]int{"page": 1})
	require.Error(t, err)

	var terr *rpc.TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, sentinel.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, reg.Len(), "expired call must not linger in the registry")
}

func TestClient_CallTransportUnavailable(t *testing.T) {
	ch := transport.NewMemoryChannel(transport.ServiceInvestor, nil)
	reg := rpc.NewRegistry(discardLogger(), 0)
	client := rpc.NewClient(ch, reg, discardLogger())

	_, err := client.Call(context.Background(), "get_investor_stats", nil)
	require.Error(t, err)

	var terr *rpc.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, transport.ServiceInvestor, terr.Service)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 0, reg.Len(), "failed send must discard its registration")
}

func TestClient_MalformedReply(t *testing.T) {
	downstream := func(string, json.RawMessage) (json.RawMessage, bool) {
		return json.RawMessage(`{"data":{"looks":"fine"}}`), true
	}
	ch := transport.NewMemoryChannel(transport.ServiceAthlete, downstream)
	reg := rpc.NewRegistry(discardLogger(), 0)
	client := rpc.NewClient(ch, reg, discardLogger())

	_, err := client.Call(context.Background(), "get_athlete_stats", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrMalformedReply)

	var terr *rpc.TransportError
	assert.False(t, errors.As(err, &terr), "malformed replies are defects, not transport failures")
}

// TestClient_ConcurrentCallsCorrelateCorrectly issues many parallel calls
// over one shared channel and checks every caller gets its own reply back,
// regardless of reply order.
func TestClient_ConcurrentCallsCorrelateCorrectly(t *testing.T) {
	const calls = 50

	downstream := func(_ string, payload json.RawMessage) (json.RawMessage, bool) {
		var req struct {
			N int `json:"n"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, false
		}
		return okEnvelope(fmt.Sprintf(`{"n":%d}`, req.N)), true
	}
	ch := transport.NewMemoryChannel(transport.ServiceIdentity, downstream).
		WithLatency(time.Millisecond)
	reg := rpc.NewRegistry(discardLogger(), 0)
	client := rpc.NewClient(ch, reg, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			env, err := client.Call(context.Background(), "echo", map[string]int{"n": n})
			if !assert.NoError(t, err) {
				return
			}
			var got struct {
				N int `json:"n"`
			}
			if !assert.NoError(t, env.DecodeData(&got)) {
				return
			}
			assert.Equal(t, n, got.N)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Len())
}
