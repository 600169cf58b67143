// Package admin implements the domain operations the admin surface exposes.
// Each operation sequences one or more downstream rpc calls, applies local
// rules, and translates failed envelopes into domain errors.
package admin

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"arenadesk/internal/rpc"
	"arenadesk/internal/rpc/transport"
	"arenadesk/pkg/platform/ids"
	"arenadesk/pkg/platform/sentinel"
)

const (
	dashboardCacheKey = "admin:dashboard"
	defaultCacheTTL   = 30 * time.Second
)

// Caller is the slice of the rpc client the orchestrator needs. Kept small
// so tests can stub it.
type Caller interface {
	Service() transport.ServiceName
	Call(ctx context.Context, command string, payload any) (rpc.Envelope, error)
}

// Clients bundles one caller per downstream service.
type Clients struct {
	Identity Caller
	Athlete  Caller
	Investor Caller
}

// Service holds the admin orchestrations. Operations share no mutable
// state; every call is independent and carries its own correlation id
// underneath.
type Service struct {
	clients  Clients
	cache    Cache
	cacheTTL time.Duration
	log      *slog.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithCache attaches the dashboard cache.
func WithCache(cache Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// NewService builds the orchestrator over the downstream clients.
func NewService(clients Clients, log *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		clients:  clients,
		cacheTTL: defaultCacheTTL,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fetch runs one downstream call and decodes the successful envelope into
// out. A rejected envelope becomes a DownstreamError named after the
// command; transport-level errors pass through untouched so callers can
// tell the two apart.
func fetch(ctx context.Context, caller Caller, command string, payload any, out any) error {
	env, err := caller.Call(ctx, command, payload)
	if err != nil {
		return err
	}
	if !env.Success {
		return &DownstreamError{Step: command, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := env.DecodeData(out); err != nil {
		return fmt.Errorf("%s/%s: %w", caller.Service(), command, err)
	}
	return nil
}

// Dashboard aggregates stats from all three services. The three fetches run
// in parallel; one failing fetch fails the aggregate, since a dashboard
// with silently missing panels is worse than a visible error. A short-lived
// cache absorbs admin page refreshes.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	if cached, ok := s.cachedDashboard(ctx); ok {
		return cached, nil
	}

	var dash Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fetch(gctx, s.clients.Identity, "get_user_stats", nil, &dash.Users)
	})
	g.Go(func() error {
		return fetch(gctx, s.clients.Athlete, "get_athlete_stats", nil, &dash.Athletes)
	})
	g.Go(func() error {
		return fetch(gctx, s.clients.Investor, "get_investor_stats", nil, &dash.Investors)
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	dash.FetchedAt = time.Now().UTC()

	s.storeDashboard(ctx, dash)
	return dash, nil
}

func (s *Service) cachedDashboard(ctx context.Context) (Dashboard, bool) {
	if s.cache == nil {
		return Dashboard{}, false
	}
	raw, err := s.cache.Get(ctx, dashboardCacheKey)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.log.Warn("dashboard cache read failed", slog.Any("err", err))
		}
		return Dashboard{}, false
	}
	var dash Dashboard
	if err := json.Unmarshal(raw, &dash); err != nil {
		s.log.Warn("dashboard cache entry undecodable", slog.Any("err", err))
		return Dashboard{}, false
	}
	return dash, true
}

func (s *Service) storeDashboard(ctx context.Context, dash Dashboard) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(dash)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, raw, s.cacheTTL); err != nil {
		s.log.Warn("dashboard cache write failed", slog.Any("err", err))
	}
}

// GetUser reads one user from the identity service.
func (s *Service) GetUser(ctx context.Context, userID int64) (UserProfile, error) {
	var profile UserProfile
	err := fetch(ctx, s.clients.Identity, "get_user", map[string]int64{"id": userID}, &profile)
	if err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}

// UpdateUserProfile applies a patch and then records an audit note. The two
// calls succeed or fail independently: there is no distributed transaction
// to roll the update back if the note fails, so the caller learns exactly
// which step broke and the update's effect stands.
func (s *Service) UpdateUserProfile(ctx context.Context, actorID, userID int64, patch ProfilePatch) (UserProfile, error) {
	var profile UserProfile
	err := fetch(ctx, s.clients.Identity, "update_user", struct {
		ID    int64        `json:"id"`
		Patch ProfilePatch `json:"patch"`
	}{ID: userID, Patch: patch}, &profile)
	if err != nil {
		return UserProfile{}, err
	}

	err = fetch(ctx, s.clients.Identity, "record_audit_note", map[string]any{
		"actor_id": actorID,
		"user_id":  userID,
		"note":     "profile updated via admin",
	}, nil)
	if err != nil {
		s.log.Warn("profile updated but audit note failed",
			slog.Int64("user_id", userID),
			slog.Any("err", err))
		return profile, err
	}
	return profile, nil
}

// BulkActivateUsers activates a deduplicated set of users in one downstream
// call and reports which ids the identity service actually flipped.
func (s *Service) BulkActivateUsers(ctx context.Context, userIDs []int64) (BulkActivationResult, error) {
	deduped := ids.Dedupe(userIDs)

	var result BulkActivationResult
	err := fetch(ctx, s.clients.Identity, "bulk_activate", map[string][]int64{
		"user_ids": deduped,
	}, &result)
	if err != nil {
		return BulkActivationResult{}, err
	}
	return result, nil
}

// ListAthletes reads one roster page from the athlete service.
func (s *Service) ListAthletes(ctx context.Context, page int) (AthletePage, error) {
	var out AthletePage
	err := fetch(ctx, s.clients.Athlete, "list_athletes", map[string]int{"page": page}, &out)
	if err != nil {
		return AthletePage{}, err
	}
	return out, nil
}

// ListInvestors reads one roster page from the investor service.
func (s *Service) ListInvestors(ctx context.Context, page int) (InvestorPage, error) {
	var out InvestorPage
	err := fetch(ctx, s.clients.Investor, "list_investors", map[string]int{"page": page}, &out)
	if err != nil {
		return InvestorPage{}, err
	}
	return out, nil
}
