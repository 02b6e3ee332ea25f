package order

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	Confirm(o *Order) (OrderState, error)
	Cancel(o *Order) (OrderState, error)
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusConfirmed:
		return confirmedState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) Confirm(*Order) (OrderState, error) {
	return confirmedState{}, nil
}

func (pendingState) Cancel(*Order) (OrderState, error) {
	return cancelledState{}, nil
}

// confirmedState and cancelledState are terminal.
type confirmedState struct{}

func (confirmedState) Status() Status { return StatusConfirmed }

func (confirmedState) Confirm(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (confirmedState) Cancel(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) Confirm(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (cancelledState) Cancel(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}
