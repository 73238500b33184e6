package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bagcontrollers "github.com/angelmondragon/livebag-backend/api/controllers/bags"
	internalbags "github.com/angelmondragon/livebag-backend/internal/bags"
	"github.com/angelmondragon/livebag-backend/pkg/auth"
	"github.com/angelmondragon/livebag-backend/pkg/config"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	"github.com/angelmondragon/livebag-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubRedis struct {
	data map[string]string
}

func (s *stubRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (s *stubRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *stubRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *stubRedis) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (s *stubRedis) Ping(context.Context) error { return nil }

// stubBags embeds the interface so unexercised methods panic.
type stubBags struct {
	bagcontrollers.Service
	confirms int
	advances int
}

func (s *stubBags) ListBags(context.Context, internalbags.ListFilters, pagination.Params) (pagination.Page[internalbags.BagSummary], error) {
	return pagination.Page[internalbags.BagSummary]{Items: []internalbags.BagSummary{}}, nil
}

func (s *stubBags) ConfirmPayment(_ context.Context, bagID uuid.UUID, method enums.PaymentMethod, _ internalbags.Actor) (*models.Bag, error) {
	s.confirms++
	return &models.Bag{ID: bagID, PaymentMethod: &method, Status: enums.BagStatusPaid}, nil
}

func (s *stubBags) AdvanceStatus(_ context.Context, bagID uuid.UUID, _ internalbags.Actor) (*models.Bag, error) {
	s.advances++
	return &models.Bag{ID: bagID, OperationalStatus: enums.OperationalAwaitingPickup}, nil
}

var testConfig = &config.Config{
	App: config.AppConfig{Env: "test"},
	JWT: config.JWTConfig{Secret: "secret", Issuer: "livebag-identity", ExpirationMinutes: 60},
}

func newTestRouter(t *testing.T) (http.Handler, *stubBags) {
	t.Helper()
	bags := &stubBags{}
	router := NewRouter(testConfig, nil, stubPinger{}, &stubRedis{data: map[string]string{}}, prometheus.NewRegistry(), bags)
	return router, bags
}

func bearer(t *testing.T, role enums.MemberRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testConfig.JWT, time.Now(), auth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestBagRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/bags", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestListBags(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bags?urgent_only=true", nil)
	req.Header.Set("Authorization", bearer(t, enums.MemberRoleSeller))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestConfirmPaymentIsAdminOnly(t *testing.T) {
	router, bags := newTestRouter(t)
	path := "/api/v1/bags/" + uuid.NewString() + "/payment/confirm"

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"method":"gateway"}`))
	req.Header.Set("Authorization", bearer(t, enums.MemberRoleSeller))
	req.Header.Set("Idempotency-Key", "k1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, 0, bags.confirms)

	req = httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"method":"gateway"}`))
	req.Header.Set("Authorization", bearer(t, enums.MemberRoleAdmin))
	req.Header.Set("Idempotency-Key", "k2")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, bags.confirms)
}

func TestWritesNeedIdempotencyKeyAndReplay(t *testing.T) {
	router, bags := newTestRouter(t)
	path := "/api/v1/bags/" + uuid.NewString() + "/status/advance"
	token := bearer(t, enums.MemberRoleSeller)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "advance-1")
		resp = httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusOK, resp.Code)
	}
	assert.Equal(t, 1, bags.advances)
}
