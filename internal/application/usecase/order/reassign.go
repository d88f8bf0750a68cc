package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
)

type ReassignUseCaseImpl struct {
	deps Dependencies
}

func NewReassignUseCase(deps Dependencies) *ReassignUseCaseImpl {
	return &ReassignUseCaseImpl{deps: deps.withDefaults()}
}

// Execute books an existing PENDING or ASSIGNED order for a driver and window.
// Routing runs before the driver lock is taken; the commit then re-reads the
// order and re-applies the assignment on the fresh copy.
func (uc *ReassignUseCaseImpl) Execute(ctx context.Context, input ReassignInput) (entity.OrderSnapshot, error) {
	now := uc.deps.Now()
	driverID := strings.TrimSpace(input.DriverID)
	if driverID == "" {
		return entity.OrderSnapshot{}, entity.NewValidationError("driver_id", "is required")
	}
	window, err := entity.NewTimeWindow(input.Start, input.End)
	if err != nil {
		return entity.OrderSnapshot{}, err
	}

	current, err := uc.deps.Orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return entity.OrderSnapshot{}, err
	}
	if !entity.CanTransition(current.Status(), entity.StatusAssigned) {
		return entity.OrderSnapshot{}, &entity.InvalidTransitionError{From: current.Status(), To: entity.StatusAssigned}
	}

	// Pickup and dropoff never change, so the quote stays valid for the fresh copy.
	routedCopy := current.Clone()
	if _, err := uc.deps.quote(ctx, routedCopy, true, now); err != nil {
		return entity.OrderSnapshot{}, err
	}

	var previousDriver string
	var committed *entity.Order
	err = uc.deps.UnitOfWork.Do(ctx, []string{driverID}, func(p outbound.RepositoryProvider) error {
		fresh, err := p.Order().FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		previousDriver = fresh.DriverID()
		if err := fresh.AssignTo(driverID, window, now); err != nil {
			return err
		}
		if err := checkAvailability(ctx, p.Order(), driverID, window, fresh.ID()); err != nil {
			return err
		}
		copyRouting(fresh, routedCopy, now)
		if err := p.Order().Update(ctx, fresh); err != nil {
			return err
		}
		committed = fresh
		return nil
	})
	uc.deps.recordCommit("reassign", err, entity.StatusAssigned)
	if err != nil {
		return entity.OrderSnapshot{}, fmt.Errorf("reassign order %s: %w", input.OrderID, err)
	}

	uc.deps.Log.Info(ctx, "order reassigned",
		logger.String("order_id", committed.ID()),
		logger.String("driver_id", driverID),
		logger.String("previous_driver_id", previousDriver),
	)
	uc.deps.publish(ctx, events.OrderUpdated, committed, driverID, previousDriver)
	return committed.Snapshot(), nil
}
