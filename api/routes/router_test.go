package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/promptlyprinted/promptly-backend/internal/fulfillment"
	"github.com/promptlyprinted/promptly-backend/internal/orders"
	prodigiwebhook "github.com/promptlyprinted/promptly-backend/internal/webhooks/prodigi"
	pkgAuth "github.com/promptlyprinted/promptly-backend/pkg/auth"
	"github.com/promptlyprinted/promptly-backend/pkg/config"
	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/redis"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubRedis struct {
	stubPinger
	data map[string]string
}

func newStubRedis() *stubRedis { return &stubRedis{data: map[string]string{}} }

func (s *stubRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (s *stubRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *stubRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (s *stubRedis) IdempotencyKey(scope, id string) string { return "pp:idempotency:" + scope + ":" + id }

func (s *stubRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

type stubOrders struct{}

func (stubOrders) ApplyStatus(context.Context, *gorm.DB, *models.Order, orders.StatusChange) (orders.StatusOutcome, error) {
	return orders.StatusOutcome{}, nil
}

func (stubOrders) GetDetail(_ context.Context, orderID uint) (*orders.OrderDetail, error) {
	return &orders.OrderDetail{ID: orderID, Status: enums.OrderStatusCompleted}, nil
}

func (stubOrders) ListProcessingErrors(context.Context, orders.ProcessingErrorParams) (*orders.ProcessingErrorList, error) {
	return &orders.ProcessingErrorList{}, nil
}

type stubFinalizer struct {
	retries int
}

func (s *stubFinalizer) FinalizeCheckout(_ context.Context, provider enums.PaymentProvider, sessionID string) (*fulfillment.Result, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", fulfillment.ErrSessionUnresolvable)
	}
	return &fulfillment.Result{OrderID: 9, SessionID: sessionID, Provider: provider, PaymentStatus: enums.PaymentStatusPaid}, nil
}

func (s *stubFinalizer) RetryFulfillment(_ context.Context, orderID uint) (*fulfillment.Result, error) {
	s.retries++
	return &fulfillment.Result{OrderID: orderID}, nil
}

type stubProdigi struct{}

func (stubProdigi) HandleEvent(_ context.Context, event *prodigiwebhook.CloudEvent) (*prodigiwebhook.Result, error) {
	return &prodigiwebhook.Result{EventID: event.ID}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "promptly-printed", ExpirationMinutes: 60},
	}
}

func staffToken(t *testing.T, cfg *config.Config, role enums.StaffRole) string {
	t.Helper()
	token, err := pkgAuth.MintStaffToken(cfg.JWT, time.Now(), pkgAuth.StaffTokenPayload{Subject: "staff-" + string(role), Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func newTestRouter(deps Deps) (*config.Config, http.Handler) {
	cfg := testConfig()
	return cfg, NewRouter(cfg, logger.Nop(), deps)
}

func serve(h http.Handler, method, path, auth string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	_, router := newTestRouter(Deps{DB: stubPinger{}, Redis: newStubRedis()})
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/live", "", nil).Code)
	rec := serve(router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Promptly-Env"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	_, router = newTestRouter(Deps{DB: stubPinger{err: errors.New("db down")}})
	rec = serve(router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"down"`)
}

func TestMetricsRouteMountedWhenConfigured(t *testing.T) {
	_, router := newTestRouter(Deps{})
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/metrics", "", nil).Code)

	_, router = newTestRouter(Deps{MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})})
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/metrics", "", nil).Code)
}

func TestCheckoutSuccessRoute(t *testing.T) {
	_, router := newTestRouter(Deps{Finalizer: &stubFinalizer{}})

	rec := serve(router, http.MethodGet, "/api/v1/checkout/success?session_id=cs_test_1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session_id":"cs_test_1"`)

	rec = serve(router, http.MethodGet, "/api/v1/checkout/success", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = serve(router, http.MethodGet, "/api/v1/checkout/success?session_id=x&provider=paypal", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestWebhookRoutes(t *testing.T) {
	_, router := newTestRouter(Deps{ProdigiWebhook: stubProdigi{}})

	rec := serve(router, http.MethodPost, "/api/v1/webhooks/prodigi", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty envelope fails validation")

	// Payment provider webhooks are only mounted when configured.
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/api/v1/webhooks/stripe", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/api/v1/webhooks/square", "", nil).Code)
}

func TestAdminRoutesRequireStaffToken(t *testing.T) {
	finalizer := &stubFinalizer{}
	cfg, router := newTestRouter(Deps{OrdersService: stubOrders{}, Finalizer: finalizer, Redis: newStubRedis()})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/admin/v1/orders/5", "", nil).Code)

	support := staffToken(t, cfg, enums.StaffRoleSupport)
	rec := serve(router, http.MethodGet, "/api/admin/v1/orders/5", support, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":5`)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/admin/v1/orders/5/processing-errors", support, nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/admin/v1/orders/abc", support, nil).Code)

	// Only admins may re-place an order.
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodPost, "/api/admin/v1/orders/5/fulfillment/retry", support, map[string]string{"Idempotency-Key": "k1"}).Code)

	admin := staffToken(t, cfg, enums.StaffRoleAdmin)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/api/admin/v1/orders/5/fulfillment/retry", admin, nil).Code)

	for i := 0; i < 2; i++ {
		rec = serve(router, http.MethodPost, "/api/admin/v1/orders/5/fulfillment/retry", admin, map[string]string{"Idempotency-Key": "k1"})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, 1, finalizer.retries, "replayed key must not retry twice")
}
