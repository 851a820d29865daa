package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodway/foodway-backend/pkg/enums"
)

// DeliveryAssignment is the persisted shop-level unit of delivery work.
type DeliveryAssignment struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    string    `gorm:"column:order_id;not null;uniqueIndex:ux_assignment_suborder"`
	SubOrderID string    `gorm:"column:sub_order_id;not null;uniqueIndex:ux_assignment_suborder"`
	ShopID     string    `gorm:"column:shop_id;not null"`
	ShopName   string    `gorm:"column:shop_name;not null"`

	Items         []AssignmentLineItem `gorm:"column:items;type:jsonb;serializer:json;not null"`
	Subtotal      decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryShare decimal.Decimal      `gorm:"column:delivery_share;type:numeric(12,2);not null"`
	PlatformFee   decimal.Decimal      `gorm:"column:platform_fee;type:numeric(12,2);not null"`
	PaymentFee    decimal.Decimal      `gorm:"column:payment_fee;type:numeric(12,2);not null"`

	PayeeVPA  string `gorm:"column:payee_vpa"`
	PayeeName string `gorm:"column:payee_name"`

	CustomerName   string `gorm:"column:customer_name"`
	CustomerEmail  string `gorm:"column:customer_email"`
	CustomerChatID *int64 `gorm:"column:customer_chat_id"`

	AddressText string   `gorm:"column:address_text;not null"`
	AddressLat  *float64 `gorm:"column:address_lat"`
	AddressLng  *float64 `gorm:"column:address_lng"`

	State     enums.AssignmentState `gorm:"column:state;not null;index:ix_assignment_state_created,priority:1"`
	ClaimedBy *string               `gorm:"column:claimed_by;index"`

	CreatedAt        time.Time  `gorm:"column:created_at;not null;index:ix_assignment_state_created,priority:2"`
	ClaimedAt        *time.Time `gorm:"column:claimed_at"`
	DeliveredAt      *time.Time `gorm:"column:delivered_at"`
	ExpiredAt        *time.Time `gorm:"column:expired_at"`
	DispatchDeadline time.Time  `gorm:"column:dispatch_deadline;not null"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;not null"`
}

func (DeliveryAssignment) TableName() string {
	return "delivery_assignments"
}

// AssignmentLineItem is stored inside the items json column.
type AssignmentLineItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}
