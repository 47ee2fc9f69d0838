package order

// orderState implements the state pattern for order lifecycle transitions.
// Cancelled and Delivered are terminal; the only transition repeated without
// effect is approving an already cancelled order.
type orderState interface {
	Status() Status
	OnShipped(o *Order, trackingNumber, courier string) (orderState, error)
	OnDelivered(o *Order) (orderState, error)
	OnCancellationRequested(o *Order, reason string) (orderState, error)
	OnCancellationApproved(o *Order) (orderState, error)
	OnCancellationRejected(o *Order) (orderState, error)
}

func stateFor(s Status) orderState {
	switch s {
	case StatusShipped:
		return shippedState{}
	case StatusDelivered:
		return deliveredState{}
	case StatusCancellationRequested:
		return cancellationRequestedState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return processingState{}
	}
}

type processingState struct{}

func (processingState) Status() Status { return StatusProcessing }

func (processingState) OnShipped(o *Order, trackingNumber, courier string) (orderState, error) {
	o.TrackingNumber = trackingNumber
	o.Courier = courier
	return shippedState{}, nil
}

func (processingState) OnDelivered(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (processingState) OnCancellationRequested(o *Order, reason string) (orderState, error) {
	o.CancellationReason = reason
	return cancellationRequestedState{}, nil
}

func (processingState) OnCancellationApproved(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (processingState) OnCancellationRejected(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

type shippedState struct{}

func (shippedState) Status() Status { return StatusShipped }

func (shippedState) OnShipped(*Order, string, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (shippedState) OnDelivered(*Order) (orderState, error) {
	return deliveredState{}, nil
}

func (shippedState) OnCancellationRequested(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (shippedState) OnCancellationApproved(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (shippedState) OnCancellationRejected(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

type deliveredState struct{}

func (deliveredState) Status() Status { return StatusDelivered }

func (deliveredState) OnShipped(*Order, string, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnDelivered(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnCancellationRequested(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnCancellationApproved(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnCancellationRejected(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

type cancellationRequestedState struct{}

func (cancellationRequestedState) Status() Status { return StatusCancellationRequested }

func (cancellationRequestedState) OnShipped(*Order, string, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancellationRequestedState) OnDelivered(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancellationRequestedState) OnCancellationRequested(o *Order, reason string) (orderState, error) {
	o.CancellationReason = reason
	return cancellationRequestedState{}, nil
}

func (cancellationRequestedState) OnCancellationApproved(*Order) (orderState, error) {
	return cancelledState{}, nil
}

func (cancellationRequestedState) OnCancellationRejected(o *Order) (orderState, error) {
	o.CancellationReason = ""
	return processingState{}, nil
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnShipped(*Order, string, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnDelivered(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancellationRequested(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancellationApproved(*Order) (orderState, error) {
	return cancelledState{}, nil
}

func (cancelledState) OnCancellationRejected(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}
