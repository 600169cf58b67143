package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenadesk/internal/messaging"
	"arenadesk/internal/rpc"
)

type stubService struct {
	receipt messaging.Receipt
	err     error

	gotSenderID   int64
	gotText       string
	gotRecipients []int64
	called        bool
}

func (s *stubService) Broadcast(_ context.Context, senderID int64, text string, recipientIDs []int64) (messaging.Receipt, error) {
	s.called = true
	s.gotSenderID = senderID
	s.gotText = text
	s.gotRecipients = recipientIDs
	return s.receipt, s.err
}

func newHandler(service Service) *Handler {
	return New(service, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decodeEnvelope(t *testing.T, body json.RawMessage) rpc.Envelope {
	t.Helper()
	env, err := rpc.DecodeEnvelope(body)
	require.NoError(t, err)
	return env
}

func TestHandleBroadcastSuccess(t *testing.T) {
	service := &stubService{receipt: messaging.Receipt{
		MessageID:  11,
		Text:       "season opener tonight",
		Recipients: []int64{3, 5, 9},
	}}
	h := newHandler(service)

	env := decodeEnvelope(t, h.handleBroadcast(context.Background(),
		json.RawMessage(`{"sender_id":7,"text":"season opener tonight","recipient_ids":[3,3,5,9]}`)))
	require.True(t, env.Success)

	var receipt messaging.Receipt
	require.NoError(t, env.DecodeData(&receipt))
	assert.Equal(t, int64(11), receipt.MessageID)

	// Dedup belongs to the service, not the handler.
	assert.Equal(t, []int64{3, 3, 5, 9}, service.gotRecipients)
}

func TestHandleBroadcastValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantMsg string
	}{
		{"bad json", `nope`, "invalid payload"},
		{"missing sender", `{"text":"hi","recipient_ids":[1]}`, "sender_id must be positive"},
		{"blank text", `{"sender_id":7,"text":"  ","recipient_ids":[1]}`, "text must not be empty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubService{}
			h := newHandler(service)

			env := decodeEnvelope(t, h.handleBroadcast(context.Background(), json.RawMessage(tc.payload)))
			require.False(t, env.Success)
			assert.Equal(t, tc.wantMsg, env.Message)
			assert.False(t, service.called)
		})
	}
}

func TestHandleBroadcastStoreFailureIsOpaque(t *testing.T) {
	service := &stubService{err: errors.New("pq: connection reset")}
	h := newHandler(service)

	env := decodeEnvelope(t, h.handleBroadcast(context.Background(),
		json.RawMessage(`{"sender_id":7,"text":"hi","recipient_ids":[1]}`)))
	require.False(t, env.Success)
	assert.Equal(t, "temporarily unavailable", env.Message)
}
