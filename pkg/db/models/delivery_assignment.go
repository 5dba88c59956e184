package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodbowl/foodbowl-backend/pkg/enums"
)

// DeliveryAssignment is the audit ledger entry written when a worker accepts a shop order.
type DeliveryAssignment struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	ShopID      uuid.UUID              `gorm:"column:shop_id;type:uuid;not null"`
	ShopOrderID uuid.UUID              `gorm:"column:shop_order_id;type:uuid;not null;uniqueIndex:ux_delivery_assignments_active,where:status = 'assigned'"`
	AssignedTo  uuid.UUID              `gorm:"column:assigned_to;type:uuid;not null;index"`
	Status      enums.AssignmentStatus `gorm:"column:status;type:text;not null;default:'assigned'"`
	AcceptedAt  time.Time              `gorm:"column:accepted_at;not null"`
	CompletedAt *time.Time             `gorm:"column:completed_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *DeliveryAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
