package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenadesk/internal/admin"
	"arenadesk/internal/rpc"
	"arenadesk/internal/rpc/transport"
	"arenadesk/pkg/platform/sentinel"
)

type stubService struct {
	dashboard     admin.Dashboard
	dashboardErr  error
	user          admin.UserProfile
	userErr       error
	bulkResult    admin.BulkActivationResult
	bulkGotIDs    []int64
	athletes      admin.AthletePage
	athletesPage  int
	investors     admin.InvestorPage
	investorsPage int
}

func (s *stubService) Dashboard(context.Context) (admin.Dashboard, error) {
	return s.dashboard, s.dashboardErr
}

func (s *stubService) GetUser(_ context.Context, _ int64) (admin.UserProfile, error) {
	return s.user, s.userErr
}

func (s *stubService) UpdateUserProfile(_ context.Context, _, _ int64, _ admin.ProfilePatch) (admin.UserProfile, error) {
	return s.user, s.userErr
}

func (s *stubService) BulkActivateUsers(_ context.Context, userIDs []int64) (admin.BulkActivationResult, error) {
	s.bulkGotIDs = userIDs
	return s.bulkResult, nil
}

func (s *stubService) ListAthletes(_ context.Context, page int) (admin.AthletePage, error) {
	s.athletesPage = page
	return s.athletes, nil
}

func (s *stubService) ListInvestors(_ context.Context, page int) (admin.InvestorPage, error) {
	s.investorsPage = page
	return s.investors, nil
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

func TestHandleDashboardSuccess(t *testing.T) {
	service := &stubService{dashboard: admin.Dashboard{
		Users: admin.UserStats{Total: 42, ActiveLast30: 7},
	}}
	h := newHandler(service)

	env := decodeEnvelope(t, h.handleDashboard(context.Background(), nil))
	require.True(t, env.Success)

	var dash admin.Dashboard
	require.NoError(t, env.DecodeData(&dash))
	assert.Equal(t, int64(42), dash.Users.Total)
}

func TestHandleDashboardKeepsDownstreamMessage(t *testing.T) {
	service := &stubService{dashboardErr: &admin.DownstreamError{
		Step:    "get_user_stats",
		Message: "stats store offline",
	}}
	h := newHandler(service)

	env := decodeEnvelope(t, h.handleDashboard(context.Background(), nil))
	require.False(t, env.Success)
	assert.Equal(t, "stats store offline", env.Message)
}

func TestHandleDashboardHidesTransportDetail(t *testing.T) {
	service := &stubService{dashboardErr: &rpc.TransportError{
		Service: transport.ServiceIdentity,
		Command: "get_user_stats",
		Err:     sentinel.ErrUnavailable,
	}}
	h := newHandler(service)

	env := decodeEnvelope(t, h.handleDashboard(context.Background(), nil))
	require.False(t, env.Success)
	assert.Equal(t, "temporarily unavailable", env.Message)
}

func TestHandleGetUserRejectsBadPayload(t *testing.T) {
	h := newHandler(&stubService{})

	env := decodeEnvelope(t, h.handleGetUser(context.Background(), json.RawMessage(`not json`)))
	require.False(t, env.Success)
	assert.Equal(t, "invalid payload", env.Message)
}

func TestHandleBulkActivatePassesIDsThrough(t *testing.T) {
	service := &stubService{bulkResult: admin.BulkActivationResult{Activated: []int64{3, 5}}}
	h := newHandler(service)

	env := decodeEnvelope(t, h.handleBulkActivate(context.Background(),
		json.RawMessage(`{"user_ids":[3,5]}`)))
	require.True(t, env.Success)
	assert.Equal(t, []int64{3, 5}, service.bulkGotIDs)
}

func TestHandleListAthletesDefaultsPage(t *testing.T) {
	service := &stubService{}
	h := newHandler(service)

	env := decodeEnvelope(t, h.handleListAthletes(context.Background(), nil))
	require.True(t, env.Success)
	assert.Equal(t, 1, service.athletesPage)

	env = decodeEnvelope(t, h.handleListAthletes(context.Background(),
		json.RawMessage(`{"page":-2}`)))
	require.True(t, env.Success)
	assert.Equal(t, 1, service.athletesPage)
}
