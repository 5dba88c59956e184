package enums

// ShopOrderStatus is the fulfillment state of a single shop's share of an order.
type ShopOrderStatus string

const (
	ShopOrderStatusPending        ShopOrderStatus = "pending"
	ShopOrderStatusConfirmed      ShopOrderStatus = "confirmed"
	ShopOrderStatusPreparing      ShopOrderStatus = "preparing"
	ShopOrderStatusReady          ShopOrderStatus = "ready"
	ShopOrderStatusOutForDelivery ShopOrderStatus = "out_for_delivery"
	ShopOrderStatusDelivered      ShopOrderStatus = "delivered"
	ShopOrderStatusCancelled      ShopOrderStatus = "cancelled"
)

var shopOrderStatuses = newSet("shop order status",
	ShopOrderStatusPending,
	ShopOrderStatusConfirmed,
	ShopOrderStatusPreparing,
	ShopOrderStatusReady,
	ShopOrderStatusOutForDelivery,
	ShopOrderStatusDelivered,
	ShopOrderStatusCancelled,
)

func (s ShopOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShopOrderStatus.
func (s ShopOrderStatus) IsValid() bool {
	return shopOrderStatuses.contains(s)
}

// ParseShopOrderStatus converts raw input into a ShopOrderStatus.
func ParseShopOrderStatus(value string) (ShopOrderStatus, error) {
	return shopOrderStatuses.parse(value)
}

// IsTerminal reports whether no further fulfillment is expected.
func (s ShopOrderStatus) IsTerminal() bool {
	return s == ShopOrderStatusDelivered || s == ShopOrderStatusCancelled
}

// AllowsAssignment reports whether a delivery worker may remain bound while in this status.
func (s ShopOrderStatus) AllowsAssignment() bool {
	return s == ShopOrderStatusOutForDelivery || s == ShopOrderStatusDelivered
}
