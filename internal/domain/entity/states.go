package entity

func invalid(from OrderState, to Status) error {
	return &InvalidTransitionError{From: from.Name(), To: to}
}

type PendingState struct{}

func (s *PendingState) Name() Status { return StatusPending }

func (s *PendingState) Assign(o *Order, driverID string, window TimeWindow) error {
	o.driverID = driverID
	o.window = window
	o.TransitionTo(&AssignedState{})
	return nil
}

func (s *PendingState) Arrive(o *Order) error   { return invalid(s, StatusDriverArrived) }
func (s *PendingState) Start(o *Order) error    { return invalid(s, StatusInProgress) }
func (s *PendingState) Complete(o *Order) error { return invalid(s, StatusCompleted) }

func (s *PendingState) Cancel(o *Order) error {
	o.TransitionTo(&CancelledState{})
	return nil
}

type AssignedState struct{}

func (s *AssignedState) Name() Status { return StatusAssigned }

// Assign on an assigned order is a reassignment to another driver or window.
func (s *AssignedState) Assign(o *Order, driverID string, window TimeWindow) error {
	o.driverID = driverID
	o.window = window
	return nil
}

func (s *AssignedState) Arrive(o *Order) error {
	o.TransitionTo(&DriverArrivedState{})
	return nil
}

func (s *AssignedState) Start(o *Order) error    { return invalid(s, StatusInProgress) }
func (s *AssignedState) Complete(o *Order) error { return invalid(s, StatusCompleted) }

func (s *AssignedState) Cancel(o *Order) error {
	o.TransitionTo(&CancelledState{})
	return nil
}

type DriverArrivedState struct{}

func (s *DriverArrivedState) Name() Status { return StatusDriverArrived }

func (s *DriverArrivedState) Assign(o *Order, _ string, _ TimeWindow) error {
	return invalid(s, StatusAssigned)
}
func (s *DriverArrivedState) Arrive(o *Order) error { return invalid(s, StatusDriverArrived) }

func (s *DriverArrivedState) Start(o *Order) error {
	o.TransitionTo(&InProgressState{})
	return nil
}

func (s *DriverArrivedState) Complete(o *Order) error { return invalid(s, StatusCompleted) }

func (s *DriverArrivedState) Cancel(o *Order) error {
	o.TransitionTo(&CancelledState{})
	return nil
}

type InProgressState struct{}

func (s *InProgressState) Name() Status { return StatusInProgress }

func (s *InProgressState) Assign(o *Order, _ string, _ TimeWindow) error {
	return invalid(s, StatusAssigned)
}
func (s *InProgressState) Arrive(o *Order) error { return invalid(s, StatusDriverArrived) }
func (s *InProgressState) Start(o *Order) error  { return invalid(s, StatusInProgress) }

func (s *InProgressState) Complete(o *Order) error {
	o.TransitionTo(&CompletedState{})
	return nil
}

func (s *InProgressState) Cancel(o *Order) error {
	o.TransitionTo(&CancelledState{})
	return nil
}

type CompletedState struct{}

func (s *CompletedState) Name() Status { return StatusCompleted }
func (s *CompletedState) Assign(o *Order, _ string, _ TimeWindow) error {
	return invalid(s, StatusAssigned)
}
func (s *CompletedState) Arrive(o *Order) error   { return invalid(s, StatusDriverArrived) }
func (s *CompletedState) Start(o *Order) error    { return invalid(s, StatusInProgress) }
func (s *CompletedState) Complete(o *Order) error { return invalid(s, StatusCompleted) }
func (s *CompletedState) Cancel(o *Order) error   { return invalid(s, StatusCancelled) }

type CancelledState struct{}

func (s *CancelledState) Name() Status { return StatusCancelled }
func (s *CancelledState) Assign(o *Order, _ string, _ TimeWindow) error {
	return invalid(s, StatusAssigned)
}
func (s *CancelledState) Arrive(o *Order) error   { return invalid(s, StatusDriverArrived) }
func (s *CancelledState) Start(o *Order) error    { return invalid(s, StatusInProgress) }
func (s *CancelledState) Complete(o *Order) error { return invalid(s, StatusCompleted) }
func (s *CancelledState) Cancel(o *Order) error   { return invalid(s, StatusCancelled) }
