package delivery

import (
	"time"

	"github.com/foodbowl/foodbowl-backend/internal/orders"
	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShopOrderInput identifies the shop order a worker is acting on.
type ShopOrderInput struct {
	OrderID     uuid.UUID `json:"orderId" validate:"required"`
	ShopOrderID uuid.UUID `json:"shopOrderId" validate:"required"`
}

// View is a shop order denormalised for the delivery worker's screen.
type View struct {
	OrderID         uuid.UUID              `json:"orderId"`
	ShopOrderID     uuid.UUID              `json:"shopOrderId"`
	Customer        *orders.ContactView    `json:"customer,omitempty"`
	Shop            orders.ShopView        `json:"shop"`
	ShopOwner       *orders.ContactView    `json:"shopOwner,omitempty"`
	Items           []orders.LineItemView  `json:"items"`
	Subtotal        decimal.Decimal        `json:"subtotal"`
	Status          enums.ShopOrderStatus  `json:"status"`
	PaymentMethod   enums.PaymentMethod    `json:"paymentMethod"`
	DeliveryAddress models.DeliveryAddress `json:"deliveryAddress"`
	AcceptedAt      *time.Time             `json:"acceptedAt,omitempty"`
	DeliveredAt     *time.Time             `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
}

// AcceptResult is returned when a worker wins a shop order.
type AcceptResult struct {
	AssignmentID uuid.UUID `json:"assignmentId"`
	OrderID      uuid.UUID `json:"orderId"`
	ShopOrderID  uuid.UUID `json:"shopOrderId"`
	AcceptedAt   time.Time `json:"acceptedAt"`
}

// DeliveredResult is returned when a worker completes a delivery.
type DeliveredResult struct {
	OrderID      uuid.UUID  `json:"orderId"`
	ShopOrderID  uuid.UUID  `json:"shopOrderId"`
	DeliveredAt  time.Time  `json:"deliveredAt"`
	AssignmentID *uuid.UUID `json:"assignmentId,omitempty"`
	LedgerClosed bool       `json:"ledgerClosed"`
}

// Stats summarises a worker's deliveries.
type Stats struct {
	TodayDeliveries    int64           `json:"todayDeliveries"`
	TotalDeliveries    int64           `json:"totalDeliveries"`
	PendingDeliveries  int64           `json:"pendingDeliveries"`
	TodayEarnings      decimal.Decimal `json:"todayEarnings"`
	TotalEarnings      decimal.Decimal `json:"totalEarnings"`
	TodayEarningsPaise int64           `json:"todayEarningsPaise"`
	TotalEarningsPaise int64           `json:"totalEarningsPaise"`
	DayStart           time.Time       `json:"dayStart"`
}

// Counts are the raw aggregates behind Stats.
type Counts struct {
	Total   int64
	Today   int64
	Pending int64
}

// AssignmentEvent is the outbox payload for delivery assignment changes.
type AssignmentEvent struct {
	OrderID      uuid.UUID  `json:"orderId"`
	ShopOrderID  uuid.UUID  `json:"shopOrderId"`
	WorkerID     uuid.UUID  `json:"workerId"`
	AssignmentID *uuid.UUID `json:"assignmentId,omitempty"`
	// PreviousWorkerID is set when a reject released another worker's claim.
	PreviousWorkerID *uuid.UUID `json:"previousWorkerId,omitempty"`
}
