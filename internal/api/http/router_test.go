package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/api/http/handlers"
	"github.com/spec-kit/ticket-warden/internal/auth"
	"github.com/spec-kit/ticket-warden/internal/config"
	"github.com/spec-kit/ticket-warden/internal/domain"
	"github.com/spec-kit/ticket-warden/internal/observability"
	"github.com/spec-kit/ticket-warden/internal/persistence"
	"github.com/spec-kit/ticket-warden/internal/repository"
	"github.com/spec-kit/ticket-warden/internal/service"
)

type sessionProbe bool

func (s sessionProbe) Ready() bool { return bool(s) }

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type busySweeper struct{}

func (busySweeper) RunOnce(context.Context) ([]service.SweepAction, bool, error) {
	return nil, false, nil
}

type opsFixture struct {
	app    *fiber.App
	store  *repository.TicketStore
	tokens *auth.TokenManager
}

func newOpsFixture(t *testing.T, session sessionProbe, deps map[string]handlers.Pinger) *opsFixture {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	store := repository.NewTicketStore(persistence.NewFileTicketBackend(filepath.Join(t.TempDir(), "tickets.json")), logger)
	tickets := service.NewTicketService(service.TicketDependencies{
		Store:   store,
		Metrics: metrics,
		Logger:  logger,
		Policy:  config.TicketPolicyConfig{InactivityThreshold: 6 * time.Hour},
	})
	tokens := auth.NewTokenManager("test-secret", "ticket-warden", 10)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("ticket-warden", "test", session, deps),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Tickets:        handlers.NewTicketsHandler(tickets, busySweeper{}),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &opsFixture{app: app, store: store, tokens: tokens}
}

func (f *opsFixture) token(t *testing.T, scopes ...string) string {
	t.Helper()
	token, _, err := f.tokens.GenerateToken("ops", scopes)
	require.NoError(t, err)
	return token
}

func (f *opsFixture) do(t *testing.T, method, target, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestHealthLive(t *testing.T) {
	f := newOpsFixture(t, true, nil)

	status, body := f.do(t, nethttp.MethodGet, "/health/live", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])
	assert.Equal(t, "ticket-warden", body["service"])
}

func TestHealthReady(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	broken := pingerFunc(func(context.Context) error { return errors.New("disk gone") })

	cases := []struct {
		name    string
		session sessionProbe
		deps    map[string]handlers.Pinger
		want    int
	}{
		{name: "all ok", session: true, deps: map[string]handlers.Pinger{"storage": ok}, want: nethttp.StatusOK},
		{name: "session down", session: false, deps: map[string]handlers.Pinger{"storage": ok}, want: nethttp.StatusServiceUnavailable},
		{name: "storage down", session: true, deps: map[string]handlers.Pinger{"storage": broken}, want: nethttp.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOpsFixture(t, tc.session, tc.deps)
			status, _ := f.do(t, nethttp.MethodGet, "/health/ready", "")
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestTicketsRequireToken(t *testing.T) {
	f := newOpsFixture(t, true, nil)

	status, body := f.do(t, nethttp.MethodGet, "/tickets", "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = f.do(t, nethttp.MethodGet, "/tickets", "not-a-jwt")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestListTickets(t *testing.T) {
	f := newOpsFixture(t, true, nil)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, f.store.Insert(ctx, domain.TicketRecord{ChannelID: "old", OpenerUserID: "u1", CreatedAt: now.Add(-7 * time.Hour)}))
	require.NoError(t, f.store.Insert(ctx, domain.TicketRecord{ChannelID: "new", OpenerUserID: "u2", CreatedAt: now.Add(-time.Hour)}))
	token := f.token(t, auth.ScopeTicketsRead)

	status, body := f.do(t, nethttp.MethodGet, "/tickets", token)
	require.Equal(t, nethttp.StatusOK, status)
	items := body["data"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "old", first["channel_id"])
	assert.Equal(t, true, first["stale"])

	status, body = f.do(t, nethttp.MethodGet, "/tickets?stale=true", token)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, body = f.do(t, nethttp.MethodGet, "/tickets?opener_id=u2", token)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, body = f.do(t, nethttp.MethodGet, "/tickets?stale=maybe", token)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestRetireTicket(t *testing.T) {
	f := newOpsFixture(t, true, nil)
	require.NoError(t, f.store.Insert(context.Background(), domain.TicketRecord{ChannelID: "c1", OpenerUserID: "u1", CreatedAt: time.Now().UTC()}))

	status, body := f.do(t, nethttp.MethodDelete, "/tickets/c1", f.token(t, auth.ScopeTicketsRead))
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "PERMISSION_DENIED", errorCode(body))
	assert.True(t, f.store.Contains("c1"))

	writer := f.token(t, auth.ScopeTicketsWrite)
	status, body = f.do(t, nethttp.MethodDelete, "/tickets/c1", writer)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]any)["retired"])
	assert.False(t, f.store.Contains("c1"))

	status, body = f.do(t, nethttp.MethodDelete, "/tickets/c1", writer)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestRunSweepWhileBusy(t *testing.T) {
	f := newOpsFixture(t, true, nil)

	status, body := f.do(t, nethttp.MethodPost, "/sweeps", f.token(t, auth.ScopeTicketsWrite))
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "SWEEP_IN_PROGRESS", errorCode(body))
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	f := newOpsFixture(t, true, nil)

	status, body := f.do(t, nethttp.MethodGet, "/nope", "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
	assert.NotEmpty(t, body["error"].(map[string]any)["request_id"])

	status, body = f.do(t, nethttp.MethodGet, "/metrics", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Contains(t, body, "tickets")
	assert.Contains(t, body, "errors")
}
