package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foodway/foodway-backend/internal/assignments"
	"github.com/foodway/foodway-backend/internal/broadcast"
	"github.com/foodway/foodway-backend/internal/dispatch"
	"github.com/foodway/foodway-backend/internal/payments"
	"github.com/foodway/foodway-backend/internal/workers"
	pkgAuth "github.com/foodway/foodway-backend/pkg/auth"
	"github.com/foodway/foodway-backend/pkg/config"
	"github.com/foodway/foodway-backend/pkg/db/models"
	"github.com/foodway/foodway-backend/pkg/enums"
	"github.com/foodway/foodway-backend/pkg/logger"
	"github.com/foodway/foodway-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubDispatch struct {
	placed []dispatch.OrderPlaced
}

func (s *stubDispatch) PlaceOrder(ctx context.Context, order dispatch.OrderPlaced) (*dispatch.PlaceOrderResult, error) {
	s.placed = append(s.placed, order)
	return &dispatch.PlaceOrderResult{Created: []assignments.AssignmentView{{OrderID: order.OrderID}}}, nil
}

func (s *stubDispatch) RequestDeliveryOtp(ctx context.Context, assignmentID uuid.UUID, workerID string) (*dispatch.IssuedCode, error) {
	return &dispatch.IssuedCode{ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubDispatch) VerifyDeliveryOtp(ctx context.Context, assignmentID uuid.UUID, workerID, code string) (*models.DeliveryAssignment, error) {
	return &models.DeliveryAssignment{ID: assignmentID}, nil
}

func (s *stubDispatch) PaymentRequest(ctx context.Context, assignmentID uuid.UUID, workerID string) (*payments.Request, error) {
	return nil, nil
}

func (s *stubDispatch) RequestAccountOtp(ctx context.Context, email string) (*dispatch.IssuedCode, error) {
	return &dispatch.IssuedCode{ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (s *stubDispatch) VerifyAccountOtp(ctx context.Context, email, code string) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0", ServiceToken: "svc-token"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "foodway",
			ExpirationMinutes: 60,
		},
	}
}

type testDeps struct {
	Deps
	dispatch *stubDispatch
}

func newTestDeps(t *testing.T, cfg *config.Config) testDeps {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	broker, err := broadcast.NewBroker(broadcast.BrokerParams{Logger: logg})
	if err != nil {
		t.Fatalf("new broker: %v", err)
	}
	t.Cleanup(broker.Close)
	assignmentSvc, err := assignments.NewService(assignments.ServiceParams{
		Store:     assignments.NewMemoryStore(),
		Publisher: broker,
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("new assignments service: %v", err)
	}
	workerSvc, err := workers.NewService(workers.NewMemoryRoster(), broker, logg)
	if err != nil {
		t.Fatalf("new workers service: %v", err)
	}
	reg := prometheus.NewRegistry()
	metrics.NewDispatchMetrics(reg)
	stub := &stubDispatch{}
	return testDeps{
		Deps: Deps{
			Config:      cfg,
			Logger:      logg,
			DB:          stubPinger{},
			Gatherer:    reg,
			Broker:      broker,
			Assignments: assignmentSvc,
			Dispatch:    stub,
			Workers:     workerSvc,
		},
		dispatch: stub,
	}
}

func buildToken(t *testing.T, cfg *config.Config, actorID string, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{ActorID: actorID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthRoutes(t *testing.T) {
	router := NewRouter(newTestDeps(t, testConfig()).Deps)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestMetricsRouteExposesRegistry(t *testing.T) {
	router := NewRouter(newTestDeps(t, testConfig()).Deps)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestWorkerGroupRejectsMissingJWT(t *testing.T) {
	router := NewRouter(newTestDeps(t, testConfig()).Deps)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/worker/ping", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestWorkerGroupRequiresDeliveryRole(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(newTestDeps(t, cfg).Deps)

	customer := httptest.NewRequest(http.MethodGet, "/api/v1/worker/ping", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, "cust-1", enums.ActorRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	worker := httptest.NewRequest(http.MethodGet, "/api/v1/worker/ping", nil)
	worker.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, "worker-1", enums.ActorRoleDelivery))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, worker)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for worker got %d", resp.Code)
	}
}

func TestWorkerAvailableAssignmentsOffDutyIsEmpty(t *testing.T) {
	cfg := testConfig()
	deps := newTestDeps(t, cfg)
	router := NewRouter(deps.Deps)

	_, err := deps.Assignments.CreateAssignment(context.Background(), assignments.CreateInput{
		OrderID:    "order-1",
		SubOrderID: "sub-1",
		ShopID:     "shop-1",
		ShopName:   "Dosa Corner",
		Subtotal:   decimal.NewFromInt(120),
		Address:    assignments.AddressInput{Text: "12 MG Road"},
	})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	token := buildToken(t, cfg, "worker-1", enums.ActorRoleDelivery)
	list := func() []json.RawMessage {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/worker/assignments/available", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
		}
		var envelope struct {
			Data struct {
				OnDuty      bool              `json:"onDuty"`
				Assignments []json.RawMessage `json:"assignments"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return envelope.Data.Assignments
	}

	if got := list(); len(got) != 0 {
		t.Fatalf("expected no assignments off duty got %d", len(got))
	}

	duty := httptest.NewRequest(http.MethodPut, "/api/v1/worker/duty", strings.NewReader(`{"onDuty":true}`))
	duty.Header.Set("Authorization", "Bearer "+token)
	duty.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, duty)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for duty got %d: %s", resp.Code, resp.Body.String())
	}

	if got := list(); len(got) != 1 {
		t.Fatalf("expected one assignment on duty got %d", len(got))
	}
}

func TestInternalOrdersRequireServiceToken(t *testing.T) {
	cfg := testConfig()
	deps := newTestDeps(t, cfg)
	router := NewRouter(deps.Deps)
	body := `{"orderId":"order-9","address":{"text":"1 Park St"},"subOrders":[{"subOrderId":"s1","shopId":"shop-1","shopName":"Chai Point"}]}`

	req := httptest.NewRequest(http.MethodPost, "/internal/v1/orders", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without service token got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/internal/v1/orders", strings.NewReader(body))
	req.Header.Set("X-Service-Token", "svc-token")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(deps.dispatch.placed) != 1 || deps.dispatch.placed[0].OrderID != "order-9" {
		t.Fatalf("unexpected placed orders %+v", deps.dispatch.placed)
	}
}

func TestPublicOtpRequestWithoutRedis(t *testing.T) {
	router := NewRouter(newTestDeps(t, testConfig()).Deps)

	req := httptest.NewRequest(http.MethodPost, "/api/public/otp/request", strings.NewReader(`{"email":"a@example.com"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", resp.Code, resp.Body.String())
	}
}
