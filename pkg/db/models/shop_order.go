package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodbowl/foodbowl-backend/pkg/enums"
)

// ActiveWorkerIndex guarantees a worker holds at most one out_for_delivery shop order.
const ActiveWorkerIndex = "ux_shop_orders_active_worker"

// ShopOrder is one shop's share of an order and the unit of delivery assignment.
type ShopOrder struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID               uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	ShopID                uuid.UUID              `gorm:"column:shop_id;type:uuid;not null"`
	OwnerID               uuid.UUID              `gorm:"column:owner_id;type:uuid;not null;index"`
	Subtotal              decimal.Decimal        `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Status                enums.ShopOrderStatus  `gorm:"column:status;type:text;not null;default:'pending';index"`
	AssignedDeliveryBoy   *uuid.UUID             `gorm:"column:assigned_delivery_boy;type:uuid;uniqueIndex:ux_shop_orders_active_worker,where:status = 'out_for_delivery'"`
	DeliveryBoyResponse   enums.DeliveryResponse `gorm:"column:delivery_boy_response;type:text;not null;default:'pending'"`
	DeliveryBoyResponseAt *time.Time             `gorm:"column:delivery_boy_response_at"`
	DeliveryOTP           *string                `gorm:"column:delivery_otp"`
	OTPExpiresAt          *time.Time             `gorm:"column:otp_expires_at"`
	DeliveredAt           *time.Time             `gorm:"column:delivered_at"`
	AssignmentID          *uuid.UUID             `gorm:"column:assignment_id;type:uuid"`
	Position              int                    `gorm:"column:position;not null;default:0"`
	Items                 []ShopOrderItem        `gorm:"foreignKey:ShopOrderID;constraint:OnDelete:CASCADE"`
	Rejections            []ShopOrderRejection   `gorm:"foreignKey:ShopOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *ShopOrder) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// RejectedBy reports whether the worker has already declined this shop order.
func (s ShopOrder) RejectedBy(workerID uuid.UUID) bool {
	for _, r := range s.Rejections {
		if r.WorkerID == workerID {
			return true
		}
	}
	return false
}

// ShopOrderItem is a line item snapshotted from the catalog at placement time.
type ShopOrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ShopOrderID uuid.UUID       `gorm:"column:shop_order_id;type:uuid;not null;index"`
	ItemID      uuid.UUID       `gorm:"column:item_id;type:uuid;not null"`
	Name        string          `gorm:"column:name;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	Position    int             `gorm:"column:position;not null;default:0"`
}

func (i *ShopOrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ShopOrderRejection records a worker who declined a shop order. The composite
// key makes repeated rejections a no-op.
type ShopOrderRejection struct {
	ShopOrderID uuid.UUID `gorm:"column:shop_order_id;type:uuid;primaryKey"`
	WorkerID    uuid.UUID `gorm:"column:worker_id;type:uuid;primaryKey"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
