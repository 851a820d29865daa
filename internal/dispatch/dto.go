package dispatch

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/foodway/foodway-backend/internal/assignments"
)

// OrderPlaced is the ordering flow's hand-off: one order split into shop-level sub-orders.
type OrderPlaced struct {
	OrderID   string                    `json:"orderId" validate:"required"`
	Customer  assignments.CustomerInput `json:"customer"`
	Address   assignments.AddressInput  `json:"address" validate:"required"`
	SubOrders []SubOrder                `json:"subOrders" validate:"required,min=1,dive"`
}

type SubOrder struct {
	SubOrderID    string                      `json:"subOrderId" validate:"required"`
	ShopID        string                      `json:"shopId" validate:"required"`
	ShopName      string                      `json:"shopName" validate:"required"`
	Items         []assignments.LineItemInput `json:"items" validate:"dive"`
	Subtotal      decimal.Decimal             `json:"subtotal"`
	DeliveryShare decimal.Decimal             `json:"deliveryShare" validate:"gte=0"`
	PlatformFee   decimal.Decimal             `json:"platformFee" validate:"gte=0"`
	PaymentFee    decimal.Decimal             `json:"paymentFee" validate:"gte=0"`
	PayeeVPA      string                      `json:"payeeVpa" validate:"omitempty,vpa"`
	PayeeName     string                      `json:"payeeName"`
}

func (o OrderPlaced) inputFor(sub SubOrder) assignments.CreateInput {
	return assignments.CreateInput{
		OrderID:       o.OrderID,
		SubOrderID:    sub.SubOrderID,
		ShopID:        sub.ShopID,
		ShopName:      sub.ShopName,
		Items:         sub.Items,
		Subtotal:      sub.Subtotal,
		DeliveryShare: sub.DeliveryShare,
		PlatformFee:   sub.PlatformFee,
		PaymentFee:    sub.PaymentFee,
		PayeeVPA:      sub.PayeeVPA,
		PayeeName:     sub.PayeeName,
		Customer:      o.Customer,
		Address:       o.Address,
	}
}

// PlaceOrderResult lists what was dispatched and what was already known from an earlier delivery
// of the same order.
type PlaceOrderResult struct {
	Created    []assignments.AssignmentView `json:"created"`
	Duplicates []string                     `json:"duplicates"`
}

// IssuedCode is returned to trusted callers only; the worker API never echoes the code.
type IssuedCode struct {
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	Channels  []string  `json:"channels,omitempty"`
}
