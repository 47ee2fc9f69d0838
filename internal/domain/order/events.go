package order

import "time"

// OrderCreatedEvent is emitted after a checkout commits. Sellers referenced
// by the order items are notified through it.
type OrderCreatedEvent struct {
	OrderID     string
	CustomerID  string
	SellerIDs   []string
	TotalAmount int64
	OccurredAt  time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		SellerIDs:   o.SellerIDs,
		TotalAmount: o.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderCancellationRequestedEvent is emitted when a customer asks to cancel.
type OrderCancellationRequestedEvent struct {
	OrderID    string
	Reason     string
	OccurredAt time.Time
}

func (OrderCancellationRequestedEvent) EventName() string { return "order.cancellation_requested" }

func NewOrderCancellationRequestedEvent(o *Order) OrderCancellationRequestedEvent {
	return OrderCancellationRequestedEvent{
		OrderID:    o.ID,
		Reason:     o.CancellationReason,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted after a cancellation approval commits,
// meaning the reserved stock has been restored.
type OrderCancelledEvent struct {
	OrderID    string
	CustomerID string
	SellerIDs  []string
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		SellerIDs:  o.SellerIDs,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderShippedEvent is emitted when a seller hands the order to a courier.
type OrderShippedEvent struct {
	OrderID        string
	TrackingNumber string
	Courier        string
	OccurredAt     time.Time
}

func (OrderShippedEvent) EventName() string { return "order.shipped" }

func NewOrderShippedEvent(o *Order) OrderShippedEvent {
	return OrderShippedEvent{
		OrderID:        o.ID,
		TrackingNumber: o.TrackingNumber,
		Courier:        o.Courier,
		OccurredAt:     time.Now().UTC(),
	}
}
