package order

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	AcceptsPayment() bool
	OnPaymentSucceeded(o *Order) (OrderState, error)
	OnCancelled(o *Order) (OrderState, error)
}

func (o *Order) state() OrderState {
	switch o.Status {
	case StatusCompleted:
		return completedState{}
	case StatusFailed:
		return failedState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() Status       { return StatusPending }
func (pendingState) AcceptsPayment() bool { return true }

func (pendingState) OnPaymentSucceeded(*Order) (OrderState, error) {
	return completedState{}, nil
}

func (pendingState) OnCancelled(*Order) (OrderState, error) {
	return cancelledState{}, nil
}

// failedState lets the customer retry checkout after an earlier failure.
type failedState struct{}

func (failedState) Status() Status       { return StatusFailed }
func (failedState) AcceptsPayment() bool { return true }

func (failedState) OnPaymentSucceeded(*Order) (OrderState, error) {
	return completedState{}, nil
}

func (failedState) OnCancelled(*Order) (OrderState, error) {
	return cancelledState{}, nil
}

type completedState struct{}

func (completedState) Status() Status       { return StatusCompleted }
func (completedState) AcceptsPayment() bool { return false }

func (completedState) OnPaymentSucceeded(*Order) (OrderState, error) {
	return nil, ErrAlreadyPaid
}

func (completedState) OnCancelled(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status       { return StatusCancelled }
func (cancelledState) AcceptsPayment() bool { return false }

func (cancelledState) OnPaymentSucceeded(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancelled(*Order) (OrderState, error) {
	return cancelledState{}, nil
}
