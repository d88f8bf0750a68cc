package order

import (
	"context"
	"fmt"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
)

type TransitionUseCaseImpl struct {
	deps Dependencies
}

func NewTransitionUseCase(deps Dependencies) *TransitionUseCaseImpl {
	return &TransitionUseCaseImpl{deps: deps.withDefaults()}
}

// Execute moves an order along its lifecycle. Transitions never widen a
// driver's occupancy, so they rely on the version check instead of a driver lock.
func (uc *TransitionUseCaseImpl) Execute(ctx context.Context, input TransitionInput) (entity.OrderSnapshot, error) {
	if _, err := entity.ParseStatus(string(input.Target)); err != nil {
		return entity.OrderSnapshot{}, err
	}
	now := uc.deps.Now()

	var committed *entity.Order
	err := uc.deps.UnitOfWork.Do(ctx, nil, func(p outbound.RepositoryProvider) error {
		o, err := p.Order().FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if input.ActorDriverID != "" && o.DriverID() != input.ActorDriverID {
			return entity.ErrForbidden
		}
		if err := o.Transition(input.Target, input.Reason, now); err != nil {
			return err
		}
		if err := p.Order().Update(ctx, o); err != nil {
			return err
		}
		committed = o
		return nil
	})
	uc.deps.recordCommit("transition", err, input.Target)
	if err != nil {
		return entity.OrderSnapshot{}, fmt.Errorf("transition order %s to %s: %w", input.OrderID, input.Target, err)
	}

	uc.deps.Log.Info(ctx, "order transitioned",
		logger.String("order_id", committed.ID()),
		logger.String("status", string(committed.Status())),
	)
	typ := events.OrderUpdated
	if committed.Status() == entity.StatusCancelled {
		typ = events.OrderDeleted
	}
	uc.deps.publish(ctx, typ, committed, committed.DriverID())
	return committed.Snapshot(), nil
}
