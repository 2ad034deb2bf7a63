package enums

// OutboxEventType names the domain events drained to Pub/Sub.
type OutboxEventType string

const (
	EventCartPlaced        OutboxEventType = "cart.placed"
	EventCartProcessing    OutboxEventType = "cart.processing"
	EventCartReady         OutboxEventType = "cart.ready"
	EventCartCompleted     OutboxEventType = "cart.completed"
	EventCartCancelled     OutboxEventType = "cart.cancelled"
	EventCartPaymentFailed OutboxEventType = "cart.payment_failed"
	EventCartReminder      OutboxEventType = "cart.payment_reminder"
	EventOrderEvicted      OutboxEventType = "order.evicted"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateCart       OutboxAggregateType = "cart"
	AggregatePlacedCart OutboxAggregateType = "placed_cart"
	AggregateOrder      OutboxAggregateType = "order"
)
