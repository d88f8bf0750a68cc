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

type CreateUseCaseImpl struct {
	deps Dependencies
}

func NewCreateOrderUseCase(deps Dependencies) *CreateUseCaseImpl {
	return &CreateUseCaseImpl{deps: deps.withDefaults()}
}

func (uc *CreateUseCaseImpl) Execute(ctx context.Context, input CreateInput) (entity.OrderSnapshot, error) {
	now := uc.deps.Now()
	window, err := entity.NewTimeWindow(input.Start, input.End)
	if err != nil {
		return entity.OrderSnapshot{}, err
	}
	order, err := entity.NewOrder(uc.deps.NewID(), entity.OrderDraft{
		Pickup:   input.Pickup,
		Dropoff:  input.Dropoff,
		Window:   window,
		Priority: input.Priority,
	}, now)
	if err != nil {
		return entity.OrderSnapshot{}, err
	}

	driverID := strings.TrimSpace(input.DriverID)
	outcome, err := uc.deps.quote(ctx, order, driverID != "", now)
	if err != nil {
		return entity.OrderSnapshot{}, err
	}

	var lock []string
	if driverID != "" {
		if err := order.AssignTo(driverID, window, now); err != nil {
			return entity.OrderSnapshot{}, err
		}
		lock = []string{driverID}
	}

	err = uc.deps.UnitOfWork.Do(ctx, lock, func(p outbound.RepositoryProvider) error {
		if driverID != "" {
			if err := checkAvailability(ctx, p.Order(), driverID, window, order.ID()); err != nil {
				return err
			}
		}
		return p.Order().Insert(ctx, order)
	})
	uc.deps.recordCommit("create", err, order.Status())
	if err != nil {
		return entity.OrderSnapshot{}, fmt.Errorf("create order: %w", err)
	}

	uc.deps.Log.Info(ctx, "order created",
		logger.String("order_id", order.ID()),
		logger.String("status", string(order.Status())),
		logger.String("route", outcome.String()),
	)
	uc.deps.publish(ctx, events.OrderCreated, order, driverID)
	return order.Snapshot(), nil
}
