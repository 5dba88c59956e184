package payments

import (
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/google/uuid"
)

// GatewayOrderResult is what the browser checkout needs to open the payment sheet.
type GatewayOrderResult struct {
	AppOrderID     uuid.UUID           `json:"appOrderId"`
	GatewayOrderID string              `json:"razorpayOrderId"`
	Amount         int64               `json:"amount"`
	Currency       string              `json:"currency"`
	KeyID          string              `json:"key"`
	PaymentStatus  enums.PaymentStatus `json:"paymentStatus"`
}

// CreateGatewayOrderRequest is the create-payment request body.
type CreateGatewayOrderRequest struct {
	AppOrderID uuid.UUID `json:"appOrderId" validate:"required"`
}

// VerifyInput is the checkout callback forwarded by the client.
type VerifyInput struct {
	GatewayOrderID   string `json:"razorpay_order_id" validate:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	GatewaySignature string `json:"razorpay_signature" validate:"required"`
	AppOrderID       string `json:"appOrderId" validate:"omitempty,uuid"`
}

// VerifyResult reports the reconciled state after a verified callback.
type VerifyResult struct {
	Verified      bool                `json:"verified"`
	AppOrderID    *uuid.UUID          `json:"appOrderId,omitempty"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus,omitempty"`
	OrderStatus   enums.OrderStatus   `json:"orderStatus,omitempty"`
}

// PaymentEvent is the outbox payload for payment state changes.
type PaymentEvent struct {
	OrderID          uuid.UUID           `json:"orderId"`
	PaymentStatus    enums.PaymentStatus `json:"paymentStatus"`
	GatewayOrderID   string              `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string              `json:"gatewayPaymentId,omitempty"`
	AmountPaise      int64               `json:"amountPaise"`
}
