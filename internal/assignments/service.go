package assignments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foodway/foodway-backend/internal/broadcast"
	"github.com/foodway/foodway-backend/pkg/db/models"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/enums"
	"github.com/foodway/foodway-backend/pkg/logger"
	"github.com/foodway/foodway-backend/pkg/metrics"
)

const defaultDispatchTTL = 45 * time.Minute

// Service is the assignment registry: the only component that mutates assignment state.
type Service interface {
	CreateAssignment(ctx context.Context, input CreateInput) (*models.DeliveryAssignment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error)
	Claim(ctx context.Context, id uuid.UUID, workerID string) (*models.DeliveryAssignment, error)
	ListAvailable(ctx context.Context, workerID string, onDuty bool) ([]models.DeliveryAssignment, error)
	ListClaimed(ctx context.Context, workerID string) ([]models.DeliveryAssignment, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error)
	QueryByDateRange(ctx context.Context, q DeliveryQuery) (*DeliveryReport, error)
	DeliveriesToday(ctx context.Context, workerID string) (*DeliveryReport, error)
	DeliveryCounts(ctx context.Context, workerID string) (*DeliveryCounts, error)
	ExpireStale(ctx context.Context) (int, error)
}

type ServiceParams struct {
	Store       Store
	Publisher   broadcast.Publisher
	Logger      *logger.Logger
	Metrics     *metrics.DispatchMetrics
	Location    *time.Location
	DispatchTTL time.Duration
	Now         func() time.Time
}

type service struct {
	store       Store
	publisher   broadcast.Publisher
	logg        *logger.Logger
	metrics     *metrics.DispatchMetrics
	loc         *time.Location
	dispatchTTL time.Duration
	now         func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "assignment store required")
	}
	if p.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.DispatchTTL <= 0 {
		p.DispatchTTL = defaultDispatchTTL
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		store:       p.Store,
		publisher:   p.Publisher,
		logg:        p.Logger,
		metrics:     p.Metrics,
		loc:         p.Location,
		dispatchTTL: p.DispatchTTL,
		now:         p.Now,
	}, nil
}

func (s *service) CreateAssignment(ctx context.Context, input CreateInput) (*models.DeliveryAssignment, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	row := &models.DeliveryAssignment{
		ID:               uuid.New(),
		OrderID:          strings.TrimSpace(input.OrderID),
		SubOrderID:       strings.TrimSpace(input.SubOrderID),
		ShopID:           strings.TrimSpace(input.ShopID),
		ShopName:         strings.TrimSpace(input.ShopName),
		Items:            lineItems(input.Items),
		Subtotal:         input.Subtotal,
		DeliveryShare:    input.DeliveryShare,
		PlatformFee:      input.PlatformFee,
		PaymentFee:       input.PaymentFee,
		PayeeVPA:         strings.TrimSpace(input.PayeeVPA),
		PayeeName:        strings.TrimSpace(input.PayeeName),
		CustomerName:     strings.TrimSpace(input.Customer.Name),
		CustomerEmail:    strings.TrimSpace(input.Customer.Email),
		AddressText:      strings.TrimSpace(input.Address.Text),
		AddressLat:       input.Address.Lat,
		AddressLng:       input.Address.Lng,
		State:            enums.AssignmentStateAvailable,
		CreatedAt:        now,
		DispatchDeadline: now.Add(s.dispatchTTL),
		UpdatedAt:        now,
	}
	if input.Customer.ChatID != 0 {
		chatID := input.Customer.ChatID
		row.CustomerChatID = &chatID
	}

	if err := s.store.Insert(ctx, row); err != nil {
		return nil, s.storeError(err, "create assignment")
	}

	ctx = s.logg.WithAssignmentID(ctx, row.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     row.OrderID,
		"sub_order_id": row.SubOrderID,
		"shop_id":      row.ShopID,
	}), "assignment.created")
	s.publish(broadcast.Created(row.ID.String(), ToView(*row), now))
	return row, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	row, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "get assignment")
	}
	return row, nil
}

func (s *service) Claim(ctx context.Context, id uuid.UUID, workerID string) (*models.DeliveryAssignment, error) {
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "worker id required")
	}

	now := s.now().UTC()
	row, err := s.store.Claim(ctx, id, workerID, now)
	if err != nil {
		s.metrics.IncClaim(claimOutcome(err))
		return nil, s.storeError(err, "claim assignment")
	}
	s.metrics.IncClaim("won")

	ctx = s.logg.WithWorkerID(s.logg.WithAssignmentID(ctx, id.String()), workerID)
	s.logg.Info(ctx, "assignment.claimed")
	s.publish(broadcast.Claimed(id.String(), workerID, now))
	return row, nil
}

// ListAvailable trusts the caller's on-duty flag; off-duty workers are offered nothing.
func (s *service) ListAvailable(ctx context.Context, workerID string, onDuty bool) ([]models.DeliveryAssignment, error) {
	if !onDuty {
		return []models.DeliveryAssignment{}, nil
	}
	rows, err := s.store.ListAvailable(ctx, s.now().UTC())
	if err != nil {
		return nil, s.storeError(err, "list available assignments")
	}
	if rows == nil {
		rows = []models.DeliveryAssignment{}
	}
	return rows, nil
}

func (s *service) ListClaimed(ctx context.Context, workerID string) ([]models.DeliveryAssignment, error) {
	if strings.TrimSpace(workerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "worker id required")
	}
	rows, err := s.store.ListClaimedBy(ctx, workerID)
	if err != nil {
		return nil, s.storeError(err, "list claimed assignments")
	}
	if rows == nil {
		rows = []models.DeliveryAssignment{}
	}
	return rows, nil
}

// MarkDelivered must only be reached after the delivery code was verified.
func (s *service) MarkDelivered(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	now := s.now().UTC()
	row, err := s.store.MarkDelivered(ctx, id, now, MonthBucket(now, s.loc))
	if err != nil {
		return nil, s.storeError(err, "mark assignment delivered")
	}
	ctx = s.logg.WithAssignmentID(ctx, id.String())
	if row.ClaimedBy != nil {
		ctx = s.logg.WithWorkerID(ctx, *row.ClaimedBy)
	}
	s.logg.Info(ctx, "assignment.delivered")
	return row, nil
}

// ExpireStale expires available assignments past their dispatch deadline and retracts them.
func (s *service) ExpireStale(ctx context.Context) (int, error) {
	now := s.now().UTC()
	expired, err := s.store.ExpireDue(ctx, now)
	for _, row := range expired {
		s.publish(broadcast.Expired(row.ID.String(), now))
	}
	if len(expired) > 0 {
		s.logg.Info(s.logg.WithField(ctx, "expired_count", len(expired)), "assignment.expired_stale")
	}
	if err != nil {
		return len(expired), s.storeError(err, "expire stale assignments")
	}
	return len(expired), nil
}

func (s *service) publish(evt *broadcast.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(evt)
}

func (s *service) storeError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrNotAvailable):
		return "not_available"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func validateCreate(input CreateInput) error {
	switch {
	case strings.TrimSpace(input.OrderID) == "":
		return invalidOrder("order id required")
	case strings.TrimSpace(input.SubOrderID) == "":
		return invalidOrder("sub-order id required")
	case strings.TrimSpace(input.ShopID) == "":
		return invalidOrder("shop id required")
	case strings.TrimSpace(input.ShopName) == "":
		return invalidOrder("shop name required")
	case strings.TrimSpace(input.Address.Text) == "":
		return invalidOrder("delivery address required")
	case !input.Subtotal.IsPositive():
		return invalidOrder("subtotal must be positive")
	case input.DeliveryShare.IsNegative(), input.PlatformFee.IsNegative(), input.PaymentFee.IsNegative():
		return invalidOrder("fees must not be negative")
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return invalidOrder(fmt.Sprintf("line item %d is malformed", i))
		}
	}
	return nil
}

func lineItems(in []LineItemInput) []models.AssignmentLineItem {
	out := make([]models.AssignmentLineItem, 0, len(in))
	for _, item := range in {
		out = append(out, models.AssignmentLineItem{
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Round(2),
		})
	}
	return out
}
