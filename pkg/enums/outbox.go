package enums

// OutboxAggregateType maps to the aggregate_type column on outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder              OutboxAggregateType = "order"
	AggregateShopOrder          OutboxAggregateType = "shop_order"
	AggregateDeliveryAssignment OutboxAggregateType = "delivery_assignment"
)

var aggregateTypes = newSet("aggregate type",
	AggregateOrder,
	AggregateShopOrder,
	AggregateDeliveryAssignment,
)

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return aggregateTypes.contains(a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType maps to the event_type column on outbox_events.
type OutboxEventType string

const (
	EventOrderPlaced            OutboxEventType = "order_placed"
	EventShopOrderStatusChanged OutboxEventType = "shop_order_status_changed"
	EventDeliveryAssigned       OutboxEventType = "delivery_assigned"
	EventDeliveryRejected       OutboxEventType = "delivery_rejected"
	EventDeliveryCompleted      OutboxEventType = "delivery_completed"
	EventGatewayOrderCreated    OutboxEventType = "payment_gateway_order_created"
	EventPaymentPaid            OutboxEventType = "payment_paid"
	EventPaymentFailed          OutboxEventType = "payment_failed"
)

var eventTypes = newSet("event type",
	EventOrderPlaced,
	EventShopOrderStatusChanged,
	EventDeliveryAssigned,
	EventDeliveryRejected,
	EventDeliveryCompleted,
	EventGatewayOrderCreated,
	EventPaymentPaid,
	EventPaymentFailed,
)

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return eventTypes.contains(e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse(value)
}
