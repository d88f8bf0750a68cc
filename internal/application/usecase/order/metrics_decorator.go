package order

import (
	"context"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
)

type CreateOrderMetricsDecorator struct {
	Next    CreateUseCase
	Metrics metrics.Metrics
}

func (d *CreateOrderMetricsDecorator) Execute(ctx context.Context, input CreateInput) (entity.OrderSnapshot, error) {
	start := time.Now()
	output, err := d.Next.Execute(ctx, input)
	d.Metrics.RecordUseCaseExecution("CreateOrder", err == nil, time.Since(start))
	return output, err
}

type ReassignOrderMetricsDecorator struct {
	Next    ReassignUseCase
	Metrics metrics.Metrics
}

func (d *ReassignOrderMetricsDecorator) Execute(ctx context.Context, input ReassignInput) (entity.OrderSnapshot, error) {
	start := time.Now()
	output, err := d.Next.Execute(ctx, input)
	d.Metrics.RecordUseCaseExecution("ReassignOrder", err == nil, time.Since(start))
	return output, err
}

type TransitionOrderMetricsDecorator struct {
	Next    TransitionUseCase
	Metrics metrics.Metrics
}

func (d *TransitionOrderMetricsDecorator) Execute(ctx context.Context, input TransitionInput) (entity.OrderSnapshot, error) {
	start := time.Now()
	output, err := d.Next.Execute(ctx, input)
	d.Metrics.RecordUseCaseExecution("TransitionOrder", err == nil, time.Since(start))
	return output, err
}
