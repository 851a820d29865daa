package assignments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/foodway/foodway-backend/pkg/db/models"
	"github.com/foodway/foodway-backend/pkg/enums"
)

// CreateInput is one shop-level sub-order handed over by the ordering flow.
type CreateInput struct {
	OrderID       string          `json:"orderId" validate:"required"`
	SubOrderID    string          `json:"subOrderId" validate:"required"`
	ShopID        string          `json:"shopId" validate:"required"`
	ShopName      string          `json:"shopName" validate:"required"`
	Items         []LineItemInput `json:"items" validate:"dive"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryShare decimal.Decimal `json:"deliveryShare"`
	PlatformFee   decimal.Decimal `json:"platformFee"`
	PaymentFee    decimal.Decimal `json:"paymentFee"`
	PayeeVPA      string          `json:"payeeVpa"`
	PayeeName     string          `json:"payeeName"`
	Customer      CustomerInput   `json:"customer"`
	Address       AddressInput    `json:"address" validate:"required"`
}

type LineItemInput struct {
	Name      string          `json:"name" validate:"required"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type CustomerInput struct {
	Name   string `json:"name"`
	Email  string `json:"email" validate:"omitempty,email"`
	ChatID int64  `json:"chatId"`
}

type AddressInput struct {
	Text string   `json:"text" validate:"required"`
	Lat  *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng  *float64 `json:"lng" validate:"omitempty,longitude"`
}

// DeliveryQuery selects a worker's delivered assignments for a month, or one day of it.
type DeliveryQuery struct {
	WorkerID string
	Year     int
	Month    int
	Day      *int
}

type DeliveryReport struct {
	Count       int              `json:"count"`
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	Assignments []AssignmentView `json:"assignments"`
}

type DeliveryCounts struct {
	Total       int64  `json:"total"`
	Month       int64  `json:"month"`
	MonthBucket string `json:"monthBucket"`
}

// AssignmentView is the wire shape used by the API and broadcast payloads.
type AssignmentView struct {
	ID               string                `json:"id"`
	OrderID          string                `json:"orderId"`
	SubOrderID       string                `json:"subOrderId"`
	ShopID           string                `json:"shopId"`
	ShopName         string                `json:"shopName"`
	Items            []LineItemView        `json:"items"`
	Subtotal         string                `json:"subtotal"`
	DeliveryShare    string                `json:"deliveryShare"`
	PlatformFee      string                `json:"platformFee"`
	PaymentFee       string                `json:"paymentFee"`
	CustomerName     string                `json:"customerName,omitempty"`
	Address          AddressInput          `json:"address"`
	State            enums.AssignmentState `json:"state"`
	ClaimedBy        string                `json:"claimedBy,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	ClaimedAt        *time.Time            `json:"claimedAt,omitempty"`
	DeliveredAt      *time.Time            `json:"deliveredAt,omitempty"`
	ExpiredAt        *time.Time            `json:"expiredAt,omitempty"`
	DispatchDeadline time.Time             `json:"dispatchDeadline"`
}

type LineItemView struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

func ToView(a models.DeliveryAssignment) AssignmentView {
	items := make([]LineItemView, 0, len(a.Items))
	for _, it := range a.Items {
		items = append(items, LineItemView{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice.StringFixed(2)})
	}
	view := AssignmentView{
		ID:               a.ID.String(),
		OrderID:          a.OrderID,
		SubOrderID:       a.SubOrderID,
		ShopID:           a.ShopID,
		ShopName:         a.ShopName,
		Items:            items,
		Subtotal:         a.Subtotal.StringFixed(2),
		DeliveryShare:    a.DeliveryShare.StringFixed(2),
		PlatformFee:      a.PlatformFee.StringFixed(2),
		PaymentFee:       a.PaymentFee.StringFixed(2),
		CustomerName:     a.CustomerName,
		Address:          AddressInput{Text: a.AddressText, Lat: a.AddressLat, Lng: a.AddressLng},
		State:            a.State,
		CreatedAt:        a.CreatedAt,
		ClaimedAt:        a.ClaimedAt,
		DeliveredAt:      a.DeliveredAt,
		ExpiredAt:        a.ExpiredAt,
		DispatchDeadline: a.DispatchDeadline,
	}
	if a.ClaimedBy != nil {
		view.ClaimedBy = *a.ClaimedBy
	}
	return view
}

func ToViews(rows []models.DeliveryAssignment) []AssignmentView {
	out := make([]AssignmentView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToView(row))
	}
	return out
}
