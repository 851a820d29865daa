package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/foodway/foodway-backend/internal/assignments"
	"github.com/foodway/foodway-backend/internal/notify"
	"github.com/foodway/foodway-backend/internal/otp"
	"github.com/foodway/foodway-backend/internal/payments"
	"github.com/foodway/foodway-backend/pkg/db/models"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/enums"
	"github.com/foodway/foodway-backend/pkg/logger"
)

// OTPIssuer is the subset of the OTP issuer the dispatch flow needs.
type OTPIssuer interface {
	Issue(ctx context.Context, key otp.Key, policy otp.Policy, to notify.Recipient) (string, error)
	Verify(ctx context.Context, key otp.Key, candidate string, policy otp.Policy) error
}

// Service composes the registry, the OTP issuer and the payment link builder into the
// operations a worker and the ordering flow call.
type Service interface {
	PlaceOrder(ctx context.Context, order OrderPlaced) (*PlaceOrderResult, error)
	RequestDeliveryOtp(ctx context.Context, assignmentID uuid.UUID, workerID string) (*IssuedCode, error)
	VerifyDeliveryOtp(ctx context.Context, assignmentID uuid.UUID, workerID, code string) (*models.DeliveryAssignment, error)
	PaymentRequest(ctx context.Context, assignmentID uuid.UUID, workerID string) (*payments.Request, error)
	RequestAccountOtp(ctx context.Context, email string) (*IssuedCode, error)
	VerifyAccountOtp(ctx context.Context, email, code string) error
}

type ServiceParams struct {
	Assignments    assignments.Service
	OTP            OTPIssuer
	DeliveryPolicy otp.Policy
	AccountPolicy  otp.Policy
	Logger         *logger.Logger
	Now            func() time.Time
}

type service struct {
	assignments    assignments.Service
	otp            OTPIssuer
	deliveryPolicy otp.Policy
	accountPolicy  otp.Policy
	logg           *logger.Logger
	now            func() time.Time
}

var ErrNotClaimant = pkgerrors.New(pkgerrors.CodeForbidden, "assignment is held by another worker")

func NewService(p ServiceParams) (Service, error) {
	if p.Assignments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "assignment service required")
	}
	if p.OTP == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "otp issuer required")
	}
	if p.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if p.DeliveryPolicy.Purpose != enums.OTPPurposeDelivery || p.AccountPolicy.Purpose != enums.OTPPurposeAccount {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "otp policies required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		assignments:    p.Assignments,
		otp:            p.OTP,
		deliveryPolicy: p.DeliveryPolicy,
		accountPolicy:  p.AccountPolicy,
		logg:           p.Logger,
		now:            p.Now,
	}, nil
}

// PlaceOrder creates one assignment per sub-order. A failed sub-order never blocks its
// siblings; every failure is returned so the ordering flow can act on it. Sub-orders that
// were already dispatched are reported as duplicates rather than failures.
func (s *service) PlaceOrder(ctx context.Context, order OrderPlaced) (*PlaceOrderResult, error) {
	if strings.TrimSpace(order.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidOrder, "order id required")
	}
	if len(order.SubOrders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidOrder, "order has no sub-orders")
	}

	ctx = s.logg.WithField(ctx, "order_id", order.OrderID)
	result := &PlaceOrderResult{
		Created:    []assignments.AssignmentView{},
		Duplicates: []string{},
	}
	var errs error
	for _, sub := range order.SubOrders {
		row, err := s.assignments.CreateAssignment(ctx, order.inputFor(sub))
		switch {
		case err == nil:
			result.Created = append(result.Created, assignments.ToView(*row))
		case errors.Is(err, assignments.ErrDuplicate):
			result.Duplicates = append(result.Duplicates, sub.SubOrderID)
		default:
			s.logg.Error(s.logg.WithField(ctx, "sub_order_id", sub.SubOrderID), "dispatch.sub_order_failed", err)
			errs = multierr.Append(errs, fmt.Errorf("sub-order %s: %w", sub.SubOrderID, err))
		}
	}
	return result, errs
}

func (s *service) RequestDeliveryOtp(ctx context.Context, assignmentID uuid.UUID, workerID string) (*IssuedCode, error) {
	row, err := s.claimedBy(ctx, assignmentID, workerID)
	if err != nil {
		return nil, err
	}

	to := notify.Recipient{Name: row.CustomerName, Email: row.CustomerEmail}
	if row.CustomerChatID != nil {
		to.ChatID = *row.CustomerChatID
	}
	issuedAt := s.now().UTC()
	code, err := s.otp.Issue(ctx, otp.DeliveryKey(row.OrderID, row.SubOrderID), s.deliveryPolicy, to)
	if err != nil {
		return nil, err
	}
	return &IssuedCode{
		Code:      code,
		ExpiresAt: issuedAt.Add(s.deliveryPolicy.Window),
		Channels:  channelsFor(to),
	}, nil
}

// VerifyDeliveryOtp consumes the code and only then moves the assignment to delivered.
// A repeat from the claimant of a delivered assignment reports the code as consumed.
func (s *service) VerifyDeliveryOtp(ctx context.Context, assignmentID uuid.UUID, workerID, code string) (*models.DeliveryAssignment, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "otp required")
	}
	row, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	key := otp.DeliveryKey(row.OrderID, row.SubOrderID)
	if row.State == enums.AssignmentStateDelivered && row.ClaimedBy != nil && *row.ClaimedBy == workerID {
		err := s.otp.Verify(ctx, key, code, s.deliveryPolicy)
		if err == nil || errors.Is(err, otp.ErrNotFound) {
			// record already swept; delivery is what consumed it
			err = otp.ErrConsumed
		}
		return nil, err
	}
	if err := checkClaimant(row, workerID); err != nil {
		return nil, err
	}
	if err := s.otp.Verify(ctx, key, code, s.deliveryPolicy); err != nil {
		return nil, err
	}
	return s.assignments.MarkDelivered(ctx, assignmentID)
}

// PaymentRequest is available to the claimant while the assignment is claimed or delivered.
func (s *service) PaymentRequest(ctx context.Context, assignmentID uuid.UUID, workerID string) (*payments.Request, error) {
	row, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if row.ClaimedBy == nil {
		return nil, assignments.ErrNotClaimed
	}
	if *row.ClaimedBy != workerID {
		return nil, ErrNotClaimant
	}
	return payments.BuildRequest(*row)
}

func (s *service) RequestAccountOtp(ctx context.Context, email string) (*IssuedCode, error) {
	key := otp.AccountKey(email)
	if key.Subject == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	to := notify.Recipient{Email: key.Subject}
	issuedAt := s.now().UTC()
	code, err := s.otp.Issue(ctx, key, s.accountPolicy, to)
	if err != nil {
		return nil, err
	}
	return &IssuedCode{
		Code:      code,
		ExpiresAt: issuedAt.Add(s.accountPolicy.Window),
		Channels:  channelsFor(to),
	}, nil
}

func (s *service) VerifyAccountOtp(ctx context.Context, email, code string) error {
	key := otp.AccountKey(email)
	if key.Subject == "" || strings.TrimSpace(code) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email and otp required")
	}
	return s.otp.Verify(ctx, key, strings.TrimSpace(code), s.accountPolicy)
}

func (s *service) claimedBy(ctx context.Context, assignmentID uuid.UUID, workerID string) (*models.DeliveryAssignment, error) {
	row, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := checkClaimant(row, workerID); err != nil {
		return nil, err
	}
	return row, nil
}

func checkClaimant(row *models.DeliveryAssignment, workerID string) error {
	if row.State != enums.AssignmentStateClaimed || row.ClaimedBy == nil {
		return assignments.ErrNotClaimed
	}
	if *row.ClaimedBy != workerID {
		return ErrNotClaimant
	}
	return nil
}

func channelsFor(to notify.Recipient) []string {
	var out []string
	if to.HasEmail() {
		out = append(out, "email")
	}
	if to.HasChat() {
		out = append(out, "telegram")
	}
	return out
}
