package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/foodway/foodway-backend/api/middleware"
	"github.com/foodway/foodway-backend/internal/assignments"
	"github.com/foodway/foodway-backend/internal/dispatch"
	"github.com/foodway/foodway-backend/internal/payments"
	"github.com/foodway/foodway-backend/internal/workers"
	"github.com/foodway/foodway-backend/pkg/db/models"
	"github.com/foodway/foodway-backend/pkg/enums"
	"github.com/foodway/foodway-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test-controllers", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func asWorker(r *http.Request, workerID string) *http.Request {
	return r.WithContext(middleware.WithActor(r.Context(), middleware.Actor{ID: workerID, Role: enums.ActorRoleDelivery}))
}

func withAssignmentParam(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("assignmentId", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type stubAssignments struct {
	assignments.Service

	claim         func(ctx context.Context, id uuid.UUID, workerID string) (*models.DeliveryAssignment, error)
	listAvailable func(ctx context.Context, workerID string, onDuty bool) ([]models.DeliveryAssignment, error)
	listClaimed   func(ctx context.Context, workerID string) ([]models.DeliveryAssignment, error)
	query         func(ctx context.Context, q assignments.DeliveryQuery) (*assignments.DeliveryReport, error)
	counts        func(ctx context.Context, workerID string) (*assignments.DeliveryCounts, error)
}

func (s *stubAssignments) Claim(ctx context.Context, id uuid.UUID, workerID string) (*models.DeliveryAssignment, error) {
	return s.claim(ctx, id, workerID)
}

func (s *stubAssignments) ListAvailable(ctx context.Context, workerID string, onDuty bool) ([]models.DeliveryAssignment, error) {
	return s.listAvailable(ctx, workerID, onDuty)
}

func (s *stubAssignments) ListClaimed(ctx context.Context, workerID string) ([]models.DeliveryAssignment, error) {
	return s.listClaimed(ctx, workerID)
}

func (s *stubAssignments) QueryByDateRange(ctx context.Context, q assignments.DeliveryQuery) (*assignments.DeliveryReport, error) {
	return s.query(ctx, q)
}

func (s *stubAssignments) DeliveryCounts(ctx context.Context, workerID string) (*assignments.DeliveryCounts, error) {
	return s.counts(ctx, workerID)
}

type stubWorkers struct {
	onDuty map[string]bool
	err    error
}

func (s *stubWorkers) SetOnDuty(ctx context.Context, workerID string, onDuty bool) (*workers.DutyStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.onDuty == nil {
		s.onDuty = map[string]bool{}
	}
	s.onDuty[workerID] = onDuty
	return &workers.DutyStatus{WorkerID: workerID, OnDuty: onDuty}, nil
}

func (s *stubWorkers) IsOnDuty(ctx context.Context, workerID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.onDuty[workerID], nil
}

type stubDispatch struct {
	dispatch.Service

	placeOrder     func(ctx context.Context, order dispatch.OrderPlaced) (*dispatch.PlaceOrderResult, error)
	requestOtp     func(ctx context.Context, id uuid.UUID, workerID string) (*dispatch.IssuedCode, error)
	verifyOtp      func(ctx context.Context, id uuid.UUID, workerID, code string) (*models.DeliveryAssignment, error)
	paymentRequest func(ctx context.Context, id uuid.UUID, workerID string) (*payments.Request, error)
	accountRequest func(ctx context.Context, email string) (*dispatch.IssuedCode, error)
	accountVerify  func(ctx context.Context, email, code string) error
}

func (s *stubDispatch) PlaceOrder(ctx context.Context, order dispatch.OrderPlaced) (*dispatch.PlaceOrderResult, error) {
	return s.placeOrder(ctx, order)
}

func (s *stubDispatch) RequestDeliveryOtp(ctx context.Context, id uuid.UUID, workerID string) (*dispatch.IssuedCode, error) {
	return s.requestOtp(ctx, id, workerID)
}

func (s *stubDispatch) VerifyDeliveryOtp(ctx context.Context, id uuid.UUID, workerID, code string) (*models.DeliveryAssignment, error) {
	return s.verifyOtp(ctx, id, workerID, code)
}

func (s *stubDispatch) PaymentRequest(ctx context.Context, id uuid.UUID, workerID string) (*payments.Request, error) {
	return s.paymentRequest(ctx, id, workerID)
}

func (s *stubDispatch) RequestAccountOtp(ctx context.Context, email string) (*dispatch.IssuedCode, error) {
	return s.accountRequest(ctx, email)
}

func (s *stubDispatch) VerifyAccountOtp(ctx context.Context, email, code string) error {
	return s.accountVerify(ctx, email, code)
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}
