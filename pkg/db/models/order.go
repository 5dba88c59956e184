package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/foodbowl/foodbowl-backend/pkg/types"
)

// DeliveryAddress is the drop-off location captured at placement.
type DeliveryAddress struct {
	Text      string  `gorm:"column:text;not null" json:"text"`
	Latitude  float64 `gorm:"column:latitude;not null" json:"latitude"`
	Longitude float64 `gorm:"column:longitude;not null" json:"longitude"`
}

// Order is the customer-facing aggregate root. Its shop orders are created once
// at placement and only mutated in place afterwards.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'cash'"`
	DeliveryAddress  DeliveryAddress     `gorm:"embedded;embeddedPrefix:delivery_address_"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalAmount      decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TotalAmountPaise int64               `gorm:"column:total_amount_paise;not null"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'created'"`
	GatewayOrderID   *string             `gorm:"column:gateway_order_id;index"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`
	GatewaySignature *string             `gorm:"column:gateway_signature"`
	GatewayOrder     json.RawMessage     `gorm:"column:gateway_order;type:jsonb"`
	GatewayCreatedAt *time.Time          `gorm:"column:gateway_created_at"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	ShopOrders       []ShopOrder         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the id and derives the minor-unit total.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.TotalAmountPaise = types.MinorUnits(o.TotalAmount)
	return nil
}
