package entity

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusAssigned      Status = "ASSIGNED"
	StatusDriverArrived Status = "DRIVER_ARRIVED"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusCompleted     Status = "COMPLETED"
	StatusCancelled     Status = "CANCELLED"
)

// ActiveStatuses occupy the assigned driver for the order's time window.
var ActiveStatuses = []Status{StatusAssigned, StatusDriverArrived, StatusInProgress}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusAssigned, StatusDriverArrived, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", NewValidationError("status", "unknown status "+s)
}

func (s Status) IsActive() bool {
	return s == StatusAssigned || s == StatusDriverArrived || s == StatusInProgress
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type OrderState interface {
	Name() Status
	Assign(o *Order, driverID string, window TimeWindow) error
	Arrive(o *Order) error
	Start(o *Order) error
	Complete(o *Order) error
	Cancel(o *Order) error
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusPending:
		return &PendingState{}
	case StatusAssigned:
		return &AssignedState{}
	case StatusDriverArrived:
		return &DriverArrivedState{}
	case StatusInProgress:
		return &InProgressState{}
	case StatusCompleted:
		return &CompletedState{}
	case StatusCancelled:
		return &CancelledState{}
	}
	return nil
}

// CanTransition reports whether the state table has an edge from -> to.
func CanTransition(from, to Status) bool {
	state := stateFor(from)
	if state == nil {
		return false
	}
	scratch := &Order{state: state}
	var err error
	switch to {
	case StatusAssigned:
		err = state.Assign(scratch, "scratch", TimeWindow{})
	case StatusDriverArrived:
		err = state.Arrive(scratch)
	case StatusInProgress:
		err = state.Start(scratch)
	case StatusCompleted:
		err = state.Complete(scratch)
	case StatusCancelled:
		err = state.Cancel(scratch)
	default:
		return false
	}
	return err == nil
}
