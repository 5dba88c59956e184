package enums

// DeliveryResponse records how the delivery pool last responded to a shop order.
type DeliveryResponse string

const (
	DeliveryResponsePending  DeliveryResponse = "pending"
	DeliveryResponseAccepted DeliveryResponse = "accepted"
	DeliveryResponseRejected DeliveryResponse = "rejected"
)

var deliveryResponses = newSet("delivery response",
	DeliveryResponsePending,
	DeliveryResponseAccepted,
	DeliveryResponseRejected,
)

func (s DeliveryResponse) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryResponse.
func (s DeliveryResponse) IsValid() bool {
	return deliveryResponses.contains(s)
}

// ParseDeliveryResponse converts raw input into a DeliveryResponse.
func ParseDeliveryResponse(value string) (DeliveryResponse, error) {
	return deliveryResponses.parse(value)
}
