// Package handler mounts the admin operations on the rpc responder so the
// gateway reaches them over the same wire this service uses toward its own
// downstreams.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"arenadesk/internal/admin"
	"arenadesk/internal/rpc"
	"arenadesk/internal/rpc/transport"
)

// Service defines the admin operations the handler exposes.
type Service interface {
	Dashboard(ctx context.Context) (admin.Dashboard, error)
	GetUser(ctx context.Context, userID int64) (admin.UserProfile, error)
	UpdateUserProfile(ctx context.Context, actorID, userID int64, patch admin.ProfilePatch) (admin.UserProfile, error)
	BulkActivateUsers(ctx context.Context, userIDs []int64) (admin.BulkActivationResult, error)
	ListAthletes(ctx context.Context, page int) (admin.AthletePage, error)
	ListInvestors(ctx context.Context, page int) (admin.InvestorPage, error)
}

// Handler wires admin commands to the admin service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an admin handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the admin commands on the responder.
func (h *Handler) Register(r *transport.Responder) {
	r.Handle("get_dashboard", h.handleDashboard)
	r.Handle("get_user", h.handleGetUser)
	r.Handle("update_user_profile", h.handleUpdateUserProfile)
	r.Handle("bulk_activate_users", h.handleBulkActivate)
	r.Handle("list_athletes", h.handleListAthletes)
	r.Handle("list_investors", h.handleListInvestors)
}

func (h *Handler) handleDashboard(ctx context.Context, _ json.RawMessage) json.RawMessage {
	dash, err := h.service.Dashboard(ctx)
	if err != nil {
		return h.reject(ctx, "get_dashboard", err)
	}
	return accept(dash)
}

func (h *Handler) handleGetUser(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return rejectMessage("invalid payload")
	}
	profile, err := h.service.GetUser(ctx, req.ID)
	if err != nil {
		return h.reject(ctx, "get_user", err)
	}
	return accept(profile)
}

func (h *Handler) handleUpdateUserProfile(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req struct {
		ActorID int64              `json:"actor_id"`
		UserID  int64              `json:"user_id"`
		Patch   admin.ProfilePatch `json:"patch"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return rejectMessage("invalid payload")
	}
	profile, err := h.service.UpdateUserProfile(ctx, req.ActorID, req.UserID, req.Patch)
	if err != nil {
		return h.reject(ctx, "update_user_profile", err)
	}
	return accept(profile)
}

func (h *Handler) handleBulkActivate(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req struct {
		UserIDs []int64 `json:"user_ids"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return rejectMessage("invalid payload")
	}
	result, err := h.service.BulkActivateUsers(ctx, req.UserIDs)
	if err != nil {
		return h.reject(ctx, "bulk_activate_users", err)
	}
	return accept(result)
}

func (h *Handler) handleListAthletes(ctx context.Context, payload json.RawMessage) json.RawMessage {
	page, ok := decodePage(payload)
	if !ok {
		return rejectMessage("invalid payload")
	}
	out, err := h.service.ListAthletes(ctx, page)
	if err != nil {
		return h.reject(ctx, "list_athletes", err)
	}
	return accept(out)
}

func (h *Handler) handleListInvestors(ctx context.Context, payload json.RawMessage) json.RawMessage {
	page, ok := decodePage(payload)
	if !ok {
		return rejectMessage("invalid payload")
	}
	out, err := h.service.ListInvestors(ctx, page)
	if err != nil {
		return h.reject(ctx, "list_investors", err)
	}
	return accept(out)
}

func decodePage(payload json.RawMessage) (int, bool) {
	if len(payload) == 0 {
		return 1, true
	}
	var req struct {
		Page int `json:"page"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return 0, false
	}
	if req.Page < 1 {
		req.Page = 1
	}
	return req.Page, true
}

// reject translates an operation failure into a rejected envelope. A
// downstream rejection keeps its message verbatim; anything else — transport
// faults, timeouts, malformed replies — is reported as unavailable rather
// than leaking internals to the gateway.
func (h *Handler) reject(ctx context.Context, command string, err error) json.RawMessage {
	if derr, ok := admin.AsDownstream(err); ok {
		return rejectMessage(derr.Message)
	}
	h.logger.WarnContext(ctx, "admin command failed",
		slog.String("cmd", command),
		slog.Any("err", err))
	return rejectMessage("temporarily unavailable")
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
