package orders

import (
	"time"

	"github.com/foodbowl/foodbowl-backend/internal/payments"
	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddressInput is the drop-off location submitted at checkout.
type AddressInput struct {
	Text      string   `json:"text" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

// CartItemInput is one cart line. Catalog data is resolved server side.
type CartItemInput struct {
	ItemID   uuid.UUID `json:"itemId" validate:"required"`
	ShopID   uuid.UUID `json:"shopId" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
}

// PlaceOrderInput is the checkout request body.
type PlaceOrderInput struct {
	PaymentMethod   string           `json:"paymentMethod" validate:"required,payment_method"`
	DeliveryAddress AddressInput     `json:"deliveryAddress"`
	CartItems       []CartItemInput  `json:"cartItems" validate:"required,min=1,dive"`
	TotalAmount     *decimal.Decimal `json:"totalAmount,omitempty"`
}

// StatusChangeInput is the owner status update request body.
type StatusChangeInput struct {
	OrderID     uuid.UUID `json:"orderId" validate:"required"`
	ShopOrderID uuid.UUID `json:"shopOrderId" validate:"required"`
	Status      string    `json:"status" validate:"required"`
}

// ContactView is the public slice of a user shown next to an order.
type ContactView struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email,omitempty"`
	Mobile   string    `json:"mobile,omitempty"`
}

// ShopView is the public slice of a shop shown next to an order.
type ShopView struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	City    string    `json:"city,omitempty"`
	Address string    `json:"address,omitempty"`
}

// LineItemView is a snapshotted line item.
type LineItemView struct {
	ItemID    uuid.UUID       `json:"itemId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// ShopOrderView is one shop's share of an order as returned to clients.
type ShopOrderView struct {
	ID                    uuid.UUID              `json:"id"`
	Shop                  ShopView               `json:"shop"`
	Owner                 *ContactView           `json:"owner,omitempty"`
	Subtotal              decimal.Decimal        `json:"subtotal"`
	Status                enums.ShopOrderStatus  `json:"status"`
	AssignedDeliveryBoy   *ContactView           `json:"assignedDeliveryBoy,omitempty"`
	DeliveryBoyResponse   enums.DeliveryResponse `json:"deliveryBoyResponse"`
	DeliveryBoyResponseAt *time.Time             `json:"deliveryBoyResponseAt,omitempty"`
	DeliveredAt           *time.Time             `json:"deliveredAt,omitempty"`
	AssignmentID          *uuid.UUID             `json:"assignmentId,omitempty"`
	Items                 []LineItemView         `json:"items"`
}

// OrderView is the order aggregate as returned to clients.
type OrderView struct {
	ID               uuid.UUID              `json:"id"`
	Customer         *ContactView           `json:"customer,omitempty"`
	PaymentMethod    enums.PaymentMethod    `json:"paymentMethod"`
	DeliveryAddress  models.DeliveryAddress `json:"deliveryAddress"`
	Status           enums.OrderStatus      `json:"status"`
	TotalAmount      decimal.Decimal        `json:"totalAmount"`
	TotalAmountPaise int64                  `json:"totalAmountInPaise"`
	PaymentStatus    enums.PaymentStatus    `json:"paymentStatus"`
	GatewayOrderID   *string                `json:"razorpayOrderId,omitempty"`
	ShopOrders       []ShopOrderView        `json:"shopOrders"`
	CreatedAt        time.Time              `json:"createdAt"`
}

// PlacedOrder is the checkout response: the order plus the gateway order when one was opened.
type PlacedOrder struct {
	OrderView
	Payment *payments.GatewayOrderResult `json:"payment,omitempty"`
}

// OrderPlacedEvent is the outbox payload emitted on checkout.
type OrderPlacedEvent struct {
	OrderID          uuid.UUID           `json:"orderId"`
	UserID           uuid.UUID           `json:"userId"`
	PaymentMethod    enums.PaymentMethod `json:"paymentMethod"`
	TotalAmountPaise int64               `json:"totalAmountPaise"`
	ShopOrders       []ShopOrderRef      `json:"shopOrders"`
}

// ShopOrderRef identifies a shop order inside event payloads.
type ShopOrderRef struct {
	ShopOrderID uuid.UUID `json:"shopOrderId"`
	ShopID      uuid.UUID `json:"shopId"`
	OwnerID     uuid.UUID `json:"ownerId"`
}

// StatusChangedEvent is the outbox payload emitted on owner status updates.
type StatusChangedEvent struct {
	OrderID     uuid.UUID             `json:"orderId"`
	ShopOrderID uuid.UUID             `json:"shopOrderId"`
	From        enums.ShopOrderStatus `json:"from"`
	To          enums.ShopOrderStatus `json:"to"`
	Reopened    bool                  `json:"reopened"`
}
