package dispatch

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/foodway/foodway-backend/internal/assignments"
	"github.com/foodway/foodway-backend/internal/broadcast"
	"github.com/foodway/foodway-backend/internal/notify"
	"github.com/foodway/foodway-backend/internal/otp"
	"github.com/foodway/foodway-backend/pkg/config"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/enums"
	"github.com/foodway/foodway-backend/pkg/logger"
)

type capturedMessages struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (c *capturedMessages) Enqueue(_ context.Context, msg notify.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return true
}

type harness struct {
	svc         Service
	assignments assignments.Service
	broker      *broadcast.Broker
	messages    *capturedMessages
}

func newHarness(t *testing.T, codes ...string) *harness {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	broker, err := broadcast.NewBroker(broadcast.BrokerParams{Logger: logg, BufferSize: 16})
	require.NoError(t, err)

	registry, err := assignments.NewService(assignments.ServiceParams{
		Store:     assignments.NewMemoryStore(),
		Publisher: broker,
		Logger:    logg,
	})
	require.NoError(t, err)

	messages := &capturedMessages{}
	var opts []otp.IssuerOption
	if len(codes) > 0 {
		next := 0
		opts = append(opts, otp.WithCodeGenerator(func(int) (string, error) {
			code := codes[next%len(codes)]
			next++
			return code, nil
		}))
	}
	issuer, err := otp.NewIssuer(otp.IssuerParams{
		Store:         otp.NewMemoryStore(),
		Notifications: messages,
		Logger:        logg,
	}, opts...)
	require.NoError(t, err)

	cfg := config.OTPConfig{}
	svc, err := NewService(ServiceParams{
		Assignments:    registry,
		OTP:            issuer,
		DeliveryPolicy: otp.DeliveryPolicy(cfg),
		AccountPolicy:  otp.AccountPolicy(cfg),
		Logger:         logg,
	})
	require.NoError(t, err)
	return &harness{svc: svc, assignments: registry, broker: broker, messages: messages}
}

func sampleOrder() OrderPlaced {
	return OrderPlaced{
		OrderID:  "order-77",
		Customer: assignments.CustomerInput{Name: "Asha", Email: "asha@example.com"},
		Address:  assignments.AddressInput{Text: "12 MG Road"},
		SubOrders: []SubOrder{
			{
				SubOrderID:    "sub-a",
				ShopID:        "shop-1",
				ShopName:      "Spice Route",
				Items:         []assignments.LineItemInput{{Name: "Thali", Quantity: 2, UnitPrice: decimal.RequireFromString("120")}},
				Subtotal:      decimal.RequireFromString("240"),
				DeliveryShare: decimal.RequireFromString("40"),
				PlatformFee:   decimal.RequireFromString("10"),
				PaymentFee:    decimal.RequireFromString("5"),
				PayeeVPA:      "spiceroute@upi",
			},
			{
				SubOrderID: "sub-b",
				ShopID:     "shop-2",
				ShopName:   "Chai Point",
				Subtotal:   decimal.RequireFromString("60"),
			},
		},
	}
}

func drain(sub *broadcast.Subscriber) []*broadcast.Event {
	var out []*broadcast.Event
	for {
		select {
		case evt, ok := <-sub.C():
			if !ok {
				return out
			}
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestDeliveryFlowEndToEnd(t *testing.T) {
	h := newHarness(t, "482913")
	ctx := context.Background()

	winner := h.broker.Subscribe("w-1", true)
	h.broker.CompleteSnapshot(winner, nil)
	other := h.broker.Subscribe("w-2", true)
	h.broker.CompleteSnapshot(other, nil)
	offDuty := h.broker.Subscribe("w-3", false)
	h.broker.CompleteSnapshot(offDuty, nil)

	result, err := h.svc.PlaceOrder(ctx, sampleOrder())
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	id := result.Created[0].ID
	row, err := h.assignments.Get(ctx, mustUUID(t, id))
	require.NoError(t, err)

	_, err = h.assignments.Claim(ctx, row.ID, "w-1")
	require.NoError(t, err)
	_, err = h.assignments.Claim(ctx, row.ID, "w-2")
	assert.ErrorIs(t, err, assignments.ErrAlreadyClaimed)

	winnerEvents := drain(winner)
	require.Len(t, winnerEvents, 2, "winner sees both offers and no retraction")
	otherEvents := drain(other)
	require.Len(t, otherEvents, 3)
	assert.Equal(t, enums.DispatchEventAssignmentClaimed, otherEvents[2].Type)
	assert.Equal(t, id, otherEvents[2].AssignmentID)
	assert.Empty(t, drain(offDuty))

	_, err = h.svc.RequestDeliveryOtp(ctx, row.ID, "w-2")
	assert.ErrorIs(t, err, ErrNotClaimant)

	issued, err := h.svc.RequestDeliveryOtp(ctx, row.ID, "w-1")
	require.NoError(t, err)
	assert.Equal(t, "482913", issued.Code)
	assert.Equal(t, []string{"email"}, issued.Channels)
	require.Len(t, h.messages.msgs, 1)
	assert.Equal(t, "asha@example.com", h.messages.msgs[0].To.Email)

	_, err = h.svc.VerifyDeliveryOtp(ctx, row.ID, "w-1", "000000")
	assert.ErrorIs(t, err, otp.ErrMismatch)

	delivered, err := h.svc.VerifyDeliveryOtp(ctx, row.ID, "w-1", "482913")
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStateDelivered, delivered.State)

	_, err = h.svc.VerifyDeliveryOtp(ctx, row.ID, "w-1", "482913")
	assert.ErrorIs(t, err, otp.ErrConsumed)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOTPConsumed))
	_, err = h.svc.VerifyDeliveryOtp(ctx, row.ID, "w-2", "482913")
	assert.ErrorIs(t, err, assignments.ErrNotClaimed)

	counts, err := h.assignments.DeliveryCounts(ctx, "w-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Total)

	req, err := h.svc.PaymentRequest(ctx, row.ID, "w-1")
	require.NoError(t, err)
	assert.Equal(t, "295.00", req.Amount)
	assert.Equal(t, "Spice Route", req.PayeeName)
}

func TestPlaceOrderAggregatesFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order := sampleOrder()
	order.SubOrders = append(order.SubOrders,
		SubOrder{SubOrderID: "bad-1", ShopName: "No Id", Subtotal: decimal.RequireFromString("10")},
		SubOrder{SubOrderID: "bad-2", ShopID: "shop-9", ShopName: "Zero", Subtotal: decimal.Zero},
	)

	result, err := h.svc.PlaceOrder(ctx, order)
	require.Error(t, err)
	assert.Len(t, result.Created, 2)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.True(t, pkgerrors.HasCode(e, pkgerrors.CodeInvalidOrder), e.Error())
	}
	assert.Contains(t, errs[0].Error(), "bad-1")

	again, err := h.svc.PlaceOrder(ctx, sampleOrder())
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Equal(t, []string{"sub-a", "sub-b"}, again.Duplicates)
}

func TestPlaceOrderRejectsEmptyOrders(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.PlaceOrder(context.Background(), OrderPlaced{OrderID: "o-1"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidOrder))
}

func TestPaymentRequestUnavailableWithoutPayee(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.svc.PlaceOrder(ctx, sampleOrder())
	require.NoError(t, err)
	id := mustUUID(t, result.Created[1].ID)

	_, err = h.svc.PaymentRequest(ctx, id, "w-1")
	assert.ErrorIs(t, err, assignments.ErrNotClaimed)

	_, err = h.assignments.Claim(ctx, id, "w-1")
	require.NoError(t, err)
	_, err = h.svc.PaymentRequest(ctx, id, "w-1")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaymentUnavailable))
}

func TestAccountOtpFlow(t *testing.T) {
	h := newHarness(t, "123456", "654321")
	ctx := context.Background()

	issued, err := h.svc.RequestAccountOtp(ctx, " Rider@Example.com ")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), issued.ExpiresAt, 5*time.Second)
	assert.Equal(t, "rider@example.com", h.messages.msgs[0].To.Email)
	assert.Equal(t, "OTP", h.messages.msgs[0].Subject)

	_, err = h.svc.RequestAccountOtp(ctx, "rider@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, h.svc.VerifyAccountOtp(ctx, "rider@example.com", "123456"), otp.ErrMismatch)
	assert.NoError(t, h.svc.VerifyAccountOtp(ctx, "RIDER@example.com", "654321"))
	assert.ErrorIs(t, h.svc.VerifyAccountOtp(ctx, "rider@example.com", "654321"), otp.ErrConsumed)

	_, err = h.svc.RequestAccountOtp(ctx, "  ")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
