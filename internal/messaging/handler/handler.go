// Package handler mounts the broadcast operation on the rpc responder.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"arenadesk/internal/messaging"
	"arenadesk/internal/rpc"
	"arenadesk/internal/rpc/transport"
)

// Service defines the messaging operations the handler exposes.
type Service interface {
	Broadcast(ctx context.Context, senderID int64, text string, recipientIDs []int64) (messaging.Receipt, error)
}

// Handler wires messaging commands to the fan-out service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a messaging handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the messaging commands on the responder.
func (h *Handler) Register(r *transport.Responder) {
	r.Handle("broadcast_message", h.handleBroadcast)
}

func (h *Handler) handleBroadcast(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req struct {
		SenderID     int64   `json:"sender_id"`
		Text         string  `json:"text"`
		RecipientIDs []int64 `json:"recipient_ids"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return rejectMessage("invalid payload")
	}
	if req.SenderID <= 0 {
		return rejectMessage("sender_id must be positive")
	}
	if strings.TrimSpace(req.Text) == "" {
		return rejectMessage("text must not be empty")
	}

	receipt, err := h.service.Broadcast(ctx, req.SenderID, req.Text, req.RecipientIDs)
	if err != nil {
		h.logger.WarnContext(ctx, "broadcast failed",
			slog.Int64("sender_id", req.SenderID),
			slog.Any("err", err))
		return rejectMessage("temporarily unavailable")
	}
	return accept(receipt)
}

func accept(data any) json.RawMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		return rejectMessage("temporarily unavailable")
	}
	body, _ := json.Marshal(rpc.Envelope{Success: true, Data: raw})
	return body
}

func rejectMessage(message string) json.RawMessage {
	body, _ := json.Marshal(rpc.Envelope{Success: false, Message: message})
	return body
}
