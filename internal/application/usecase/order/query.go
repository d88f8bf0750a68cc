package order

import (
	"context"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
)

type GetUseCaseImpl struct {
	deps Dependencies
}

func NewGetUseCase(deps Dependencies) *GetUseCaseImpl {
	return &GetUseCaseImpl{deps: deps.withDefaults()}
}

func (uc *GetUseCaseImpl) Execute(ctx context.Context, id string) (entity.OrderSnapshot, error) {
	o, err := uc.deps.Orders.FindByID(ctx, id)
	if err != nil {
		return entity.OrderSnapshot{}, err
	}
	return o.Snapshot(), nil
}

// ListActiveUseCaseImpl returns every non-terminal order. Reconnecting
// clients use it to rebuild their board since the hub keeps no history.
type ListActiveUseCaseImpl struct {
	deps Dependencies
}

func NewListActiveUseCase(deps Dependencies) *ListActiveUseCaseImpl {
	return &ListActiveUseCaseImpl{deps: deps.withDefaults()}
}

func (uc *ListActiveUseCaseImpl) Execute(ctx context.Context, input ListActiveInput) ([]entity.OrderSnapshot, error) {
	orders, err := uc.deps.Orders.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entity.OrderSnapshot, 0, len(orders))
	for _, o := range orders {
		if input.DriverID != "" && o.DriverID() != input.DriverID {
			continue
		}
		out = append(out, o.Snapshot())
	}
	return out, nil
}
